// Package exchange talks to market-execution backends. The trading core only
// sees the Client interface; concrete backends are Binance, Alpaca crypto and
// an in-process paper exchange used by simulation.
package exchange

import (
	"context"

	"herd/internal/market"
	"herd/internal/wallet"
)

// OrderResult is the outcome of an order placement. A zero ID means the
// order was not confirmed by the backend; callers must not mutate any
// position state in that case.
type OrderResult struct {
	ID string
}

func (o OrderResult) Confirmed() bool {
	return o.ID != ""
}

type Client interface {
	Ticker(ctx context.Context) (market.Raw, error)
	Balance(ctx context.Context) (wallet.Raw, error)
	// Buy places a limit buy for amount of the base asset at price.
	Buy(ctx context.Context, amount, price float64) (OrderResult, error)
	// Sell places a limit sell for amount of the base asset at price.
	Sell(ctx context.Context, amount, price float64) (OrderResult, error)
}

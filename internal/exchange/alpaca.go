package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"herd/internal/config"
	"herd/internal/market"
	"herd/internal/wallet"
)

// Alpaca trades crypto pairs through the Alpaca trading API.
type Alpaca struct {
	trading *alpaca.Client
	data    *marketdata.Client
	// "BTC/USD" for data endpoints, "BTCUSD" for trading endpoints.
	dataSymbol  string
	tradeSymbol string
	fee         float64
}

func NewAlpaca(cfg config.Exchange) *Alpaca {
	baseURL := "https://api.alpaca.markets"
	if cfg.Testnet {
		baseURL = "https://paper-api.alpaca.markets"
	}
	trading := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   baseURL,
	})
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})

	tradeSymbol := strings.ToUpper(strings.ReplaceAll(cfg.Symbol, "/", ""))
	quote := strings.ToUpper(cfg.Currency)
	base := strings.TrimSuffix(tradeSymbol, quote)

	return &Alpaca{
		trading:     trading,
		data:        data,
		dataSymbol:  base + "/" + quote,
		tradeSymbol: tradeSymbol,
		fee:         cfg.Fee,
	}
}

func (a *Alpaca) Ticker(ctx context.Context) (market.Raw, error) {
	snapshot, err := a.data.GetCryptoSnapshot(a.dataSymbol, marketdata.GetCryptoSnapshotRequest{})
	if err != nil {
		return market.Raw{}, fmt.Errorf("fetch crypto snapshot: %w", err)
	}
	if snapshot.LatestTrade == nil || snapshot.DailyBar == nil {
		return market.Raw{}, fmt.Errorf("crypto snapshot for %s is incomplete", a.dataSymbol)
	}

	raw := market.Raw{
		Time: time.Now().UTC(),
		Last: snapshot.LatestTrade.Price,
		High: snapshot.DailyBar.High,
		Low:  snapshot.DailyBar.Low,
	}
	if snapshot.LatestQuote != nil {
		raw.Bid = snapshot.LatestQuote.BidPrice
		raw.Ask = snapshot.LatestQuote.AskPrice
	}
	return raw, nil
}

func (a *Alpaca) Balance(ctx context.Context) (wallet.Raw, error) {
	account, err := a.trading.GetAccount()
	if err != nil {
		return wallet.Raw{}, fmt.Errorf("fetch account: %w", err)
	}
	cash, _ := account.Cash.Float64()

	raw := wallet.Raw{CurrencyAvailable: cash, Fee: a.fee}

	position, err := a.trading.GetPosition(a.tradeSymbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return raw, nil
		}
		return wallet.Raw{}, fmt.Errorf("fetch position: %w", err)
	}
	qty, _ := position.Qty.Float64()
	raw.BTCAvailable = qty
	return raw, nil
}

func (a *Alpaca) Buy(ctx context.Context, amount, price float64) (OrderResult, error) {
	return a.placeOrder(ctx, alpaca.Buy, amount, price)
}

func (a *Alpaca) Sell(ctx context.Context, amount, price float64) (OrderResult, error) {
	return a.placeOrder(ctx, alpaca.Sell, amount, price)
}

func (a *Alpaca) placeOrder(_ context.Context, side alpaca.Side, amount, price float64) (OrderResult, error) {
	qty := decimal.NewFromFloat(amount)
	limit := decimal.NewFromFloat(price)
	order, err := a.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      a.tradeSymbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Limit,
		TimeInForce: alpaca.GTC,
		LimitPrice:  &limit,
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("place %s order: %w", side, err)
	}
	return OrderResult{ID: order.ID}, nil
}

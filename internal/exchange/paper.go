package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"herd/internal/market"
	"herd/internal/wallet"
)

// ErrSeriesExhausted signals that a loaded historical series has been fully
// replayed. The scheduler stops the simulation on it.
var ErrSeriesExhausted = errors.New("historical series exhausted")

// Paper is an in-process exchange. Orders fill immediately at the requested
// price. With a loaded series, every Ticker call advances one historical
// tick, which is what lets simulation replay a series as fast as the
// scheduler can cycle.
type Paper struct {
	mu       sync.Mutex
	btc      float64
	currency float64
	fee      float64
	current  market.Raw
	series   []market.Raw
	cursor   int
}

func NewPaper(btc, currency, fee float64) *Paper {
	return &Paper{btc: btc, currency: currency, fee: fee}
}

// LoadSeries queues historical ticks and rewinds the cursor.
func (p *Paper) LoadSeries(ticks []market.Raw) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series = ticks
	p.cursor = 0
}

// SetTicker pins the current ticker when no series is loaded.
func (p *Paper) SetTicker(raw market.Raw) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = raw
}

func (p *Paper) Ticker(_ context.Context) (market.Raw, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.series != nil {
		if p.cursor >= len(p.series) {
			return market.Raw{}, ErrSeriesExhausted
		}
		p.current = p.series[p.cursor]
		p.cursor++
	}
	return p.current, nil
}

func (p *Paper) Balance(_ context.Context) (wallet.Raw, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wallet.Raw{
		BTCAvailable:      p.btc,
		CurrencyAvailable: p.currency,
		Fee:               p.fee,
	}, nil
}

func (p *Paper) Buy(_ context.Context, amount, price float64) (OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cost := amount * price
	if cost > p.currency {
		return OrderResult{}, fmt.Errorf("insufficient funds: need %.2f, have %.2f", cost, p.currency)
	}
	p.currency -= cost
	p.btc += amount
	return OrderResult{ID: uuid.NewString()}, nil
}

func (p *Paper) Sell(_ context.Context, amount, price float64) (OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.btc {
		return OrderResult{}, fmt.Errorf("insufficient position: need %.7f, have %.7f", amount, p.btc)
	}
	p.btc -= amount
	p.currency += amount * price
	return OrderResult{ID: uuid.NewString()}, nil
}

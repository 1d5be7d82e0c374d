package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"herd/internal/config"
	"herd/internal/exchange"
	"herd/internal/hub"
	"herd/internal/market"
	"herd/internal/store"
	"herd/internal/trader"
	"herd/internal/wallet"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Simulation = true
	cfg.Trading.MaximumInvestment = 100
	// Momentum and stops off: the scenario exercises the plain buy-low
	// sell-high path.
	cfg.Strategy.MomentumTrading = false
	cfg.Strategy.TrailingStop = false
	return cfg
}

func testEngine(t *testing.T, cfg config.Config, paper *exchange.Paper) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	desk := trader.NewDesk(st, paper, nil, logger, cfg.Simulation)
	return New(cfg, config.NewManager(cfg), desk, paper, st, hub.New(logger), nil, logger)
}

func TestRunReplaysSeriesAndRoundTrips(t *testing.T) {
	cfg := testConfig()
	paper := exchange.NewPaper(1, 500, 0.5)
	paper.LoadSeries([]market.Raw{
		// Dip under the threshold of 602: the trader buys.
		{Last: 600, High: 620, Low: 580},
		// Rally past break-even: the trader sells.
		{Last: 700, High: 720, Low: 580},
		// Quiet tick, nothing to do.
		{Last: 700, High: 720, Low: 580},
	})

	eng := testEngine(t, cfg, paper)
	ctx := context.Background()

	if _, err := eng.AddTrader(ctx); err != nil {
		t.Fatalf("add trader: %v", err)
	}

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Three ticks plus the cycle that hits the exhausted series.
	if got := eng.CycleCount(); got != 4 {
		t.Fatalf("cycles = %d, want 4", got)
	}

	status := eng.Status()
	if len(status.Traders) != 1 {
		t.Fatalf("roster = %d traders, want 1", len(status.Traders))
	}
	if len(status.Traders[0].Deals) != 0 {
		t.Fatalf("open deals = %d, want 0 after the round trip", len(status.Traders[0].Deals))
	}
	// Bought ~20 worth near 600, sold near 700: the pot must have grown.
	if status.Wallet.CurrencyBalance <= 500 {
		t.Fatalf("currency balance = %v, want a profit over 500", status.Wallet.CurrencyBalance)
	}
	if eng.Value() <= 0 {
		t.Fatalf("valuation = %v, want positive", eng.Value())
	}
}

func TestRunKeepsHoldingWithoutASignal(t *testing.T) {
	cfg := testConfig()
	paper := exchange.NewPaper(1, 500, 0.5)
	// Price pinned above the threshold the whole way.
	paper.LoadSeries([]market.Raw{
		{Last: 615, High: 620, Low: 580},
		{Last: 615, High: 620, Low: 580},
	})

	eng := testEngine(t, cfg, paper)
	ctx := context.Background()

	if _, err := eng.AddTrader(ctx); err != nil {
		t.Fatalf("add trader: %v", err)
	}
	if err := eng.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	status := eng.Status()
	if len(status.Traders[0].Deals) != 0 {
		t.Fatalf("deals = %d, want none without a buy signal", len(status.Traders[0].Deals))
	}
	if status.Wallet.CurrencyBalance != 500 {
		t.Fatalf("currency balance = %v, want untouched 500", status.Wallet.CurrencyBalance)
	}
}

func TestRemoveTraderReloadsRoster(t *testing.T) {
	cfg := testConfig()
	paper := exchange.NewPaper(1, 500, 0.5)
	paper.SetTicker(market.Raw{Last: 615, High: 620, Low: 580})

	eng := testEngine(t, cfg, paper)
	ctx := context.Background()

	first, err := eng.AddTrader(ctx)
	if err != nil {
		t.Fatalf("add trader: %v", err)
	}
	if _, err := eng.AddTrader(ctx); err != nil {
		t.Fatalf("add second trader: %v", err)
	}

	present, err := eng.RemoveTrader(ctx, first.Name)
	if err != nil || !present {
		t.Fatalf("remove: present=%v err=%v", present, err)
	}
	status := eng.Status()
	if len(status.Traders) != 1 || status.Traders[0].Name == first.Name {
		t.Fatalf("roster after remove: %+v", status.Traders)
	}
}

func TestAddShareSurvivesWake(t *testing.T) {
	cfg := testConfig()
	paper := exchange.NewPaper(1, 500, 0.5)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	desk := trader.NewDesk(st, paper, nil, logger, cfg.Simulation)
	eng := New(cfg, config.NewManager(cfg), desk, paper, st, hub.New(logger), nil, logger)

	ctx := context.Background()
	if _, err := eng.AddShare(ctx, "ada", 120); err != nil {
		t.Fatalf("add share: %v", err)
	}
	if _, err := eng.AddShare(ctx, "bob", 80); err != nil {
		t.Fatalf("add share: %v", err)
	}

	// A fresh engine over the same store sees the persisted ledger.
	reborn := New(cfg, config.NewManager(cfg), desk, paper, st, hub.New(logger), nil, logger)
	if err := reborn.wake(ctx); err != nil {
		t.Fatalf("wake: %v", err)
	}
	split := reborn.Status().Split
	if !floatsClose(split["ada"], 0.6) || !floatsClose(split["bob"], 0.4) {
		t.Fatalf("share split = %v, want ada 0.6 / bob 0.4", split)
	}
}

// flakyExchange simulates collaborator outages on top of a paper exchange.
type flakyExchange struct {
	inner       *exchange.Paper
	tickerDown  bool
	balanceDown bool
}

func (f *flakyExchange) Ticker(ctx context.Context) (market.Raw, error) {
	if f.tickerDown {
		return market.Raw{}, errors.New("ticker feed offline")
	}
	return f.inner.Ticker(ctx)
}

func (f *flakyExchange) Balance(ctx context.Context) (wallet.Raw, error) {
	if f.balanceDown {
		return wallet.Raw{}, errors.New("balance feed offline")
	}
	return f.inner.Balance(ctx)
}

func (f *flakyExchange) Buy(ctx context.Context, amount, price float64) (exchange.OrderResult, error) {
	return f.inner.Buy(ctx, amount, price)
}

func (f *flakyExchange) Sell(ctx context.Context, amount, price float64) (exchange.OrderResult, error) {
	return f.inner.Sell(ctx, amount, price)
}

func TestCycleKeepsSnapshotsThroughExchangeOutage(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation = false
	paper := exchange.NewPaper(1, 500, 0.5)
	paper.SetTicker(market.Raw{Last: 615, High: 620, Low: 580})
	flaky := &flakyExchange{inner: paper}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	desk := trader.NewDesk(st, flaky, nil, logger, cfg.Simulation)
	eng := New(cfg, config.NewManager(cfg), desk, flaky, st, hub.New(logger), nil, logger)

	ctx := context.Background()
	if _, err := eng.AddTrader(ctx); err != nil {
		t.Fatalf("add trader: %v", err)
	}
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}

	flaky.tickerDown = true
	flaky.balanceDown = true
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("cycle during outage: %v", err)
	}
	status := eng.Status()
	if status.Market.Last != 615 {
		t.Fatalf("market last = %v, want retained 615", status.Market.Last)
	}
	if status.Wallet.CurrencyBalance != 500 {
		t.Fatalf("currency balance = %v, want retained 500", status.Wallet.CurrencyBalance)
	}
	if got := eng.CycleCount(); got != 2 {
		t.Fatalf("cycles = %d, want 2", got)
	}

	// The feed recovers on a dip under the threshold of 602 and the
	// pipeline picks right back up with a buy.
	flaky.tickerDown = false
	flaky.balanceDown = false
	paper.SetTicker(market.Raw{Last: 600, High: 620, Low: 580})
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("cycle after recovery: %v", err)
	}
	if deals := eng.Status().Traders[0].Deals; len(deals) != 1 {
		t.Fatalf("deals after recovery = %d, want 1", len(deals))
	}
}

func floatsClose(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validTrading() Trading {
	return Trading{
		MaximumInvestment:      200,
		MaximumCurrencyPerDeal: 20,
		MaxDealsPerTrader:      3,
		Greed:                  0.05,
		BidAlignment:           0.999,
		Impatience:             0.1,
		AltitudeDrop:           1,
		MomentumSpanSeconds:    300,
	}
}

func TestValidateTradingRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Trading)
	}{
		{"per_deal_too_small", func(tr *Trading) { tr.MaximumCurrencyPerDeal = 1 }},
		{"negative_investment", func(tr *Trading) { tr.MaximumInvestment = -1 }},
		{"alignment_too_low", func(tr *Trading) { tr.BidAlignment = 0.9 }},
		{"alignment_too_high", func(tr *Trading) { tr.BidAlignment = 1 }},
		{"no_deal_capacity", func(tr *Trading) { tr.MaxDealsPerTrader = 0 }},
		{"drop_out_of_range", func(tr *Trading) { tr.AltitudeDrop = 100 }},
	}
	for _, tc := range cases {
		tr := validTrading()
		tc.mutate(&tr)
		if err := ValidateTrading(tr); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateTradingAcceptsValidConfig(t *testing.T) {
	if err := ValidateTrading(validTrading()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
trading:
  maximum_investment: 500
  maximum_currency_per_deal: 40
  max_number_of_deals_per_trader: 5
  greed: 0.03
  bid_alignment: 0.995
  impatience: 0.2
  altitude_drop: 2
strategy:
  momentum_trading: false
  trailing_stop: false
exchange:
  backend: binance
  symbol: BTCUSDT
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Trading.MaximumCurrencyPerDeal != 40 {
		t.Fatalf("expected per-deal from file, got %v", cfg.Trading.MaximumCurrencyPerDeal)
	}
	if cfg.Strategy.MomentumTrading {
		t.Fatalf("expected momentum trading disabled by file")
	}
	if !cfg.Strategy.BellBottom {
		t.Fatalf("expected untouched default to survive the merge")
	}
	if cfg.Exchange.Backend != "binance" {
		t.Fatalf("expected backend from file, got %q", cfg.Exchange.Backend)
	}
}

func TestLoadEnvCredentialsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "exchange:\n  api_key: from_file\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HERD_EXCHANGE_KEY", "from_env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Exchange.APIKey != "from_env" {
		t.Fatalf("expected env credential to win, got %q", cfg.Exchange.APIKey)
	}
}

func TestManagerRejectsInvalidUpdateAndKeepsPrior(t *testing.T) {
	manager := NewManager(Defaults())
	before := manager.View()

	bad := validTrading()
	bad.BidAlignment = 0.5
	if err := manager.UpdateTrading(bad); err == nil {
		t.Fatalf("expected rejection of invalid update")
	}
	if manager.View() != before {
		t.Fatalf("rejected update must not change the running config")
	}
}

func TestManagerUpdateAndReset(t *testing.T) {
	manager := NewManager(Defaults())

	updated := validTrading()
	updated.Greed = 0.08
	if err := manager.UpdateTrading(updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.View().Trading.Greed != 0.08 {
		t.Fatalf("expected updated greed, got %v", manager.View().Trading.Greed)
	}

	manager.ResetTrading()
	if manager.View().Trading.Greed != Defaults().Trading.Greed {
		t.Fatalf("expected reset to initial greed, got %v", manager.View().Trading.Greed)
	}
}

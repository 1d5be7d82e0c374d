package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Trading holds the numeric thresholds of the decision engine. The canonical
// per-deal key is maximum_currency_per_deal; there is no alias.
type Trading struct {
	MaximumInvestment      float64 `yaml:"maximum_investment" json:"maximum_investment"`
	MaximumCurrencyPerDeal float64 `yaml:"maximum_currency_per_deal" json:"maximum_currency_per_deal"`
	MaxDealsPerTrader      int     `yaml:"max_number_of_deals_per_trader" json:"max_number_of_deals_per_trader"`
	Greed                  float64 `yaml:"greed" json:"greed"`
	BidAlignment           float64 `yaml:"bid_alignment" json:"bid_alignment"`
	Impatience             float64 `yaml:"impatience" json:"impatience"`
	AltitudeDrop           float64 `yaml:"altitude_drop" json:"altitude_drop"`
	MomentumSpanSeconds    int     `yaml:"momentum_time_span_seconds" json:"momentum_time_span_seconds"`
}

// MomentumSpan is the momentum record window as a duration.
func (t Trading) MomentumSpan() time.Duration {
	return time.Duration(t.MomentumSpanSeconds) * time.Second
}

// Strategy holds the boolean feature toggles. A change only takes effect on
// the next decision cycle.
type Strategy struct {
	MomentumTrading   bool `yaml:"momentum_trading" json:"momentum_trading"`
	TrailingStop      bool `yaml:"trailing_stop" json:"trailing_stop"`
	BellBottom        bool `yaml:"bell_bottom" json:"bell_bottom"`
	CombinedSelling   bool `yaml:"combined_selling" json:"combined_selling"`
	DynamicMultiplier bool `yaml:"dynamic_multiplier" json:"dynamic_multiplier"`
	DynamicDrop       bool `yaml:"dynamic_drop" json:"dynamic_drop"`
}

type Exchange struct {
	Backend   string  `yaml:"backend"` // binance, alpaca or paper
	Symbol    string  `yaml:"symbol"`
	Currency  string  `yaml:"currency"`
	APIKey    string  `yaml:"api_key"`
	APISecret string  `yaml:"api_secret"`
	Testnet   bool    `yaml:"testnet"`
	Fee       float64 `yaml:"fee"` // percent per trade
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Email struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

type Owner struct {
	Email string `yaml:"email"`
}

type Logging struct {
	Decisions     bool   `yaml:"decisions"`
	DecisionsPath string `yaml:"decisions_path"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	// Simulation trades against the in-process paper exchange and keeps
	// deal books in memory only.
	Simulation bool `yaml:"simulation"`

	Trading  Trading  `yaml:"trading"`
	Strategy Strategy `yaml:"strategy"`
	Exchange Exchange `yaml:"exchange"`
	Redis    Redis    `yaml:"redis"`
	Email    Email    `yaml:"email"`
	Owner    Owner    `yaml:"owner"`
	Logging  Logging  `yaml:"logging"`
	Server   Server   `yaml:"server"`

	SheetSizeLimit  int     `yaml:"sheet_size_limit"`
	SheetNoiseFloor float64 `yaml:"sheet_noise_floor"`
	DataSetDir      string  `yaml:"data_set_directory"`
}

// Defaults mirror a conservative small-stakes setup.
func Defaults() Config {
	return Config{
		Trading: Trading{
			MaximumCurrencyPerDeal: 20,
			MaxDealsPerTrader:      3,
			Greed:                  0.05,
			BidAlignment:           0.999,
			Impatience:             0.1,
			AltitudeDrop:           1,
			MomentumSpanSeconds:    300,
		},
		Strategy: Strategy{
			MomentumTrading: true,
			TrailingStop:    true,
			BellBottom:      true,
			CombinedSelling: true,
		},
		Exchange: Exchange{
			Backend:  "paper",
			Symbol:   "BTCUSD",
			Currency: "usd",
			Fee:      0.5,
		},
		Redis:           Redis{Addr: "localhost:6379"},
		Email:           Email{Port: 587},
		Server:          Server{Addr: ":3111"},
		SheetSizeLimit:  300,
		SheetNoiseFloor: 10,
		DataSetDir:      "data",
	}
}

// Load reads the YAML file at path over the defaults and pulls credentials
// from the environment. Environment values win so secrets can stay out of
// the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	loadDotEnvIfPresent(".env")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("HERD_EXCHANGE_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("HERD_EXCHANGE_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("HERD_EMAIL_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}

	if err := ValidateTrading(cfg.Trading); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateTrading enforces the bounds a proposed trading update must satisfy.
func ValidateTrading(t Trading) error {
	if t.MaximumCurrencyPerDeal <= 1 {
		return fmt.Errorf("maximum_currency_per_deal must exceed 1, got %v", t.MaximumCurrencyPerDeal)
	}
	if t.MaximumInvestment < 0 {
		return fmt.Errorf("maximum_investment must not be negative, got %v", t.MaximumInvestment)
	}
	if t.BidAlignment <= 0.9 || t.BidAlignment >= 1 {
		return fmt.Errorf("bid_alignment must sit in (0.9, 1), got %v", t.BidAlignment)
	}
	if t.MaxDealsPerTrader <= 0 {
		return fmt.Errorf("max_number_of_deals_per_trader must be positive, got %d", t.MaxDealsPerTrader)
	}
	if t.AltitudeDrop < 0 || t.AltitudeDrop >= 100 {
		return fmt.Errorf("altitude_drop must sit in [0, 100), got %v", t.AltitudeDrop)
	}
	return nil
}

// Package sim replays historical ticker series through the trading engine.
// A sweep runs the same series under every combination of the listed trading
// and strategy options and reports the final valuation of each, which is how
// parameter sets are compared before they are trusted with a live account.
package sim

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"herd/internal/config"
	"herd/internal/engine"
	"herd/internal/exchange"
	"herd/internal/hub"
	"herd/internal/market"
	"herd/internal/store"
	"herd/internal/trader"
)

// Sweep lists the option values to combine. An empty list keeps the base
// configuration's value for that option.
type Sweep struct {
	Trading struct {
		Greed        []float64 `yaml:"greed"`
		AltitudeDrop []float64 `yaml:"altitude_drop"`
		Impatience   []float64 `yaml:"impatience"`
	} `yaml:"trading"`
	Strategy struct {
		MomentumTrading   []bool `yaml:"momentum_trading"`
		TrailingStop      []bool `yaml:"trailing_stop"`
		BellBottom        []bool `yaml:"bell_bottom"`
		CombinedSelling   []bool `yaml:"combined_selling"`
		DynamicMultiplier []bool `yaml:"dynamic_multiplier"`
	} `yaml:"strategy"`
}

func LoadSweep(path string) (Sweep, error) {
	var sweep Sweep
	data, err := os.ReadFile(path)
	if err != nil {
		return sweep, fmt.Errorf("read sweep: %w", err)
	}
	if err := yaml.Unmarshal(data, &sweep); err != nil {
		return sweep, fmt.Errorf("parse sweep: %w", err)
	}
	return sweep, nil
}

// Combinations expands the sweep into full configurations, one per point of
// the cartesian product over all listed options.
func (s Sweep) Combinations(base config.Config) []config.Config {
	base.Simulation = true
	configs := []config.Config{base}

	configs = sweepFloats(configs, s.Trading.Greed, func(c *config.Config, v float64) { c.Trading.Greed = v })
	configs = sweepFloats(configs, s.Trading.AltitudeDrop, func(c *config.Config, v float64) { c.Trading.AltitudeDrop = v })
	configs = sweepFloats(configs, s.Trading.Impatience, func(c *config.Config, v float64) { c.Trading.Impatience = v })
	configs = sweepBools(configs, s.Strategy.MomentumTrading, func(c *config.Config, v bool) { c.Strategy.MomentumTrading = v })
	configs = sweepBools(configs, s.Strategy.TrailingStop, func(c *config.Config, v bool) { c.Strategy.TrailingStop = v })
	configs = sweepBools(configs, s.Strategy.BellBottom, func(c *config.Config, v bool) { c.Strategy.BellBottom = v })
	configs = sweepBools(configs, s.Strategy.CombinedSelling, func(c *config.Config, v bool) { c.Strategy.CombinedSelling = v })
	configs = sweepBools(configs, s.Strategy.DynamicMultiplier, func(c *config.Config, v bool) { c.Strategy.DynamicMultiplier = v })

	return configs
}

func sweepFloats(in []config.Config, values []float64, set func(*config.Config, float64)) []config.Config {
	if len(values) == 0 {
		return in
	}
	out := make([]config.Config, 0, len(in)*len(values))
	for _, cfg := range in {
		for _, v := range values {
			next := cfg
			set(&next, v)
			out = append(out, next)
		}
	}
	return out
}

func sweepBools(in []config.Config, values []bool, set func(*config.Config, bool)) []config.Config {
	if len(values) == 0 {
		return in
	}
	out := make([]config.Config, 0, len(in)*len(values))
	for _, cfg := range in {
		for _, v := range values {
			next := cfg
			set(&next, v)
			out = append(out, next)
		}
	}
	return out
}

// LoadTicks reads a historical series CSV with columns time,last,high,low.
// The time column holds unix seconds; a header row is skipped when present.
func LoadTicks(path string) ([]market.Raw, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 4

	var ticks []market.Raw
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read series line %d: %w", line, err)
		}
		seconds, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("series line %d: bad time %q", line, record[0])
		}
		tick := market.Raw{Time: time.Unix(seconds, 0).UTC()}
		for i, target := range []*float64{&tick.Last, &tick.High, &tick.Low} {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("series line %d: bad value %q", line, record[i+1])
			}
			*target = v
		}
		ticks = append(ticks, tick)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("series %s holds no ticks", path)
	}
	return ticks, nil
}

// Result is the outcome of one sweep point.
type Result struct {
	Greed             float64
	AltitudeDrop      float64
	Impatience        float64
	MomentumTrading   bool
	TrailingStop      bool
	BellBottom        bool
	CombinedSelling   bool
	DynamicMultiplier bool
	Cycles            int64
	FinalValue        float64
	Profit            float64
}

// Runner executes a sweep over one tick series.
type Runner struct {
	Base     config.Config
	Ticks    []market.Raw
	Traders  int
	BTC      float64
	Currency float64
	Log      *slog.Logger
}

// Run replays the series once per combination. Each point gets a fresh paper
// exchange, in-memory store and engine so points never contaminate each
// other.
func (r *Runner) Run(ctx context.Context, sweep Sweep) ([]Result, error) {
	if len(r.Ticks) == 0 {
		return nil, errors.New("tick series is empty")
	}
	combos := sweep.Combinations(r.Base)
	startValue := r.BTC*r.Ticks[0].Last + r.Currency

	results := make([]Result, 0, len(combos))
	for i, cfg := range combos {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		paper := exchange.NewPaper(r.BTC, r.Currency, cfg.Exchange.Fee)
		paper.LoadSeries(r.Ticks)
		st := store.NewMemory()
		desk := trader.NewDesk(st, paper, nil, r.Log, true)
		eng := engine.New(cfg, config.NewManager(cfg), desk, paper, st, hub.New(r.Log), nil, r.Log)
		eng.SetSeries(true)

		for t := 0; t < r.Traders; t++ {
			if _, err := eng.AddTrader(ctx); err != nil {
				return results, fmt.Errorf("sweep point %d: %w", i, err)
			}
		}
		if err := eng.Run(ctx); err != nil {
			return results, fmt.Errorf("sweep point %d: %w", i, err)
		}

		value := eng.Value()
		results = append(results, Result{
			Greed:             cfg.Trading.Greed,
			AltitudeDrop:      cfg.Trading.AltitudeDrop,
			Impatience:        cfg.Trading.Impatience,
			MomentumTrading:   cfg.Strategy.MomentumTrading,
			TrailingStop:      cfg.Strategy.TrailingStop,
			BellBottom:        cfg.Strategy.BellBottom,
			CombinedSelling:   cfg.Strategy.CombinedSelling,
			DynamicMultiplier: cfg.Strategy.DynamicMultiplier,
			Cycles:            eng.CycleCount(),
			FinalValue:        value,
			Profit:            value - startValue,
		})
		r.Log.Info("sweep point done",
			"point", i+1,
			"of", len(combos),
			"value", value,
			"profit", value-startValue)
	}
	return results, nil
}

// WriteResults renders the sweep results as a timestamped CSV in dir.
func WriteResults(dir string, results []Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("series_%s.csv", time.Now().UTC().Format("20060102T150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create result file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"greed", "altitude_drop", "impatience",
		"momentum_trading", "trailing_stop", "bell_bottom",
		"combined_selling", "dynamic_multiplier",
		"cycles", "final_value", "profit",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, r := range results {
		row := []string{
			strconv.FormatFloat(r.Greed, 'f', -1, 64),
			strconv.FormatFloat(r.AltitudeDrop, 'f', -1, 64),
			strconv.FormatFloat(r.Impatience, 'f', -1, 64),
			strconv.FormatBool(r.MomentumTrading),
			strconv.FormatBool(r.TrailingStop),
			strconv.FormatBool(r.BellBottom),
			strconv.FormatBool(r.CombinedSelling),
			strconv.FormatBool(r.DynamicMultiplier),
			strconv.FormatInt(r.Cycles, 10),
			strconv.FormatFloat(r.FinalValue, 'f', 2, 64),
			strconv.FormatFloat(r.Profit, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return path, writer.Error()
}

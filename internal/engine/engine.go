// Package engine runs the decision cycle: refresh wallet and market, give
// every trader one serialized turn, settle bookkeeping and reschedule. All
// trading state is owned by the cycle goroutine; the HTTP surface reaches it
// only through the mutex-guarded methods below.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"herd/internal/config"
	"herd/internal/exchange"
	"herd/internal/hub"
	"herd/internal/market"
	"herd/internal/metrics"
	"herd/internal/store"
	"herd/internal/trader"
	"herd/internal/wallet"
)

const (
	valueSheetKey = "herd_value_sheet"
	sharesKey     = "herd_shares"

	// One cycle in ten thousand is broadcast during plain simulation runs;
	// series sweeps broadcast nothing.
	broadcastSampling = 10000

	checkMin = 4 * time.Second
	checkMax = 10 * time.Second
)

type Engine struct {
	cfg       config.Config
	manager   *config.Manager
	desk      *trader.Desk
	exchange  exchange.Client
	store     store.Store
	market    *market.Tracker
	wallet    *wallet.Tracker
	hub       *hub.Hub
	decisions *DecisionLogger
	log       *slog.Logger

	simulation bool
	series     bool
	retry      *backoff.Backoff
	rng        *rand.Rand

	mu      sync.Mutex
	traders []*trader.Trader
	cycle   int64
	value   float64
}

func New(cfg config.Config, manager *config.Manager, desk *trader.Desk, ex exchange.Client, st store.Store, h *hub.Hub, decisions *DecisionLogger, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		manager:    manager,
		desk:       desk,
		exchange:   ex,
		store:      st,
		market:     market.NewTracker(cfg.Trading.MomentumSpan()),
		wallet:     wallet.NewTracker(),
		hub:        h,
		decisions:  decisions,
		log:        logger,
		simulation: cfg.Simulation,
		retry: &backoff.Backoff{
			Min:    checkMin,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetSeries marks this engine as part of a series sweep: broadcasts and
// decision logging stay off so thousands of cycles can run back to back.
func (e *Engine) SetSeries(series bool) {
	e.series = series
}

// Wallet exposes the wallet tracker for the HTTP surface and series reports.
func (e *Engine) Wallet() *wallet.Tracker {
	return e.wallet
}

// Run wakes the roster and cycles until the context ends or, in simulation,
// until the paper exchange runs out of ticks.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.wake(ctx); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := e.Cycle(ctx)
		switch {
		case errors.Is(err, exchange.ErrSeriesExhausted):
			e.log.Info("tick series exhausted", "cycles", e.CycleCount())
			return nil
		case err != nil:
			e.log.Error("cycle failed", "error", err)
			if e.simulation {
				return err
			}
			if !e.sleep(ctx, e.retry.Duration()) {
				return nil
			}
		default:
			e.retry.Reset()
			if e.simulation {
				continue
			}
			if !e.sleep(ctx, e.nextCheck()) {
				return nil
			}
		}
	}
}

func (e *Engine) wake(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	view := e.manager.View()
	traders, err := e.desk.WakeAll(ctx, view.Trading.MaxDealsPerTrader)
	if err != nil {
		return fmt.Errorf("wake traders: %w", err)
	}
	e.traders = traders
	e.loadSharesLocked(ctx)
	e.log.Info("roster awake", "traders", len(traders))
	return nil
}

// Cycle runs one full tick. Traders take their turns strictly in roster
// order against the same market and wallet snapshots.
func (e *Engine) Cycle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	e.cycle++
	metrics.Cycles.Inc()
	view := e.manager.View()

	// A collaborator outage must not freeze the herd. Outside simulation a
	// failed balance or ticker fetch keeps the previous snapshot and the
	// tick carries on with it.
	rawBalance, err := e.exchange.Balance(ctx)
	if err != nil {
		if e.simulation {
			return fmt.Errorf("balance check: %w", err)
		}
		e.log.Warn("keeping previous wallet snapshot", "error", err)
	} else {
		committedBTC, committedCurrency := e.committedLocked()
		e.wallet.Update(rawBalance, committedBTC, committedCurrency)
	}

	m := e.market.Current()
	rawTicker, err := e.exchange.Ticker(ctx)
	switch {
	case errors.Is(err, exchange.ErrSeriesExhausted):
		return err
	case err != nil && e.simulation:
		return fmt.Errorf("ticker check: %w", err)
	case err != nil:
		e.log.Warn("keeping previous market snapshot", "error", err)
	default:
		updated, uerr := e.market.Update(rawTicker, view.Trading.Impatience)
		if uerr != nil {
			e.log.Warn("keeping previous market snapshot", "error", uerr)
		} else {
			m = updated
		}
	}
	e.value = e.wallet.Valuate(m.Last)
	metrics.PortfolioValue.Set(e.value)

	outcomes := make([]trader.Outcome, 0, len(e.traders))
	openDeals := 0
	for _, tr := range e.traders {
		tr.Capacity = view.Trading.MaxDealsPerTrader
		out := e.desk.Step(ctx, tr, m, e.wallet, view)
		outcomes = append(outcomes, out)
		openDeals += len(tr.Deals)
		metrics.Decisions.WithLabelValues(string(out.Action), string(out.Result)).Inc()
		if out.Action != trader.Hold {
			e.countOrder(out)
		}
	}
	metrics.LiveTraders.Set(float64(len(e.traders)))
	metrics.OpenDeals.Set(float64(openDeals))

	e.settleLocked(ctx, view, m, outcomes)
	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (e *Engine) countOrder(out trader.Outcome) {
	side := "buy"
	if out.Action == trader.Sell {
		side = "sell"
	}
	result := "confirmed"
	if out.Result == trader.ResultOrderFailed {
		result = "failed"
	}
	metrics.Orders.WithLabelValues(side, result).Inc()
}

func (e *Engine) settleLocked(ctx context.Context, view config.View, m market.Snapshot, outcomes []trader.Outcome) {
	cool := e.wallet.Recover(view.Trading.Greed)
	metrics.WalletCool.Set(cool)

	if !e.simulation && e.value > e.cfg.SheetNoiseFloor {
		e.appendValueSheet(ctx)
	}

	if e.broadcastTime() {
		e.hub.Publish("cycle", CyclePayload{
			Cycle:    e.cycle,
			Market:   m,
			Wallet:   e.wallet.Current(),
			Value:    e.value,
			Outcomes: outcomes,
		})
	}

	if e.decisions != nil && !e.series {
		e.decisions.Append(CycleRecord{
			Timestamp: time.Now().UTC(),
			Cycle:     e.cycle,
			Last:      m.Last,
			Value:     e.value,
			Cool:      cool,
			Outcomes:  outcomes,
		})
	}
}

// CyclePayload is the telemetry frame published after each broadcast cycle.
type CyclePayload struct {
	Cycle    int64            `json:"cycle"`
	Market   market.Snapshot  `json:"market"`
	Wallet   wallet.Snapshot  `json:"wallet"`
	Value    float64          `json:"value"`
	Outcomes []trader.Outcome `json:"outcomes"`
}

func (e *Engine) broadcastTime() bool {
	if e.series {
		return false
	}
	return !e.simulation || e.cycle%broadcastSampling == 0
}

// appendValueSheet records the current valuation in the scored log and trims
// the oldest entries past the configured limit.
func (e *Engine) appendValueSheet(ctx context.Context) {
	ms := time.Now().UnixMilli()
	entry := fmt.Sprintf("%d|%.2f", ms, e.value)
	if err := e.store.AppendLog(ctx, valueSheetKey, float64(ms), entry); err != nil {
		e.log.Warn("value sheet append failed", "error", err)
		return
	}
	size, err := e.store.LogSize(ctx, valueSheetKey)
	if err != nil {
		e.log.Warn("value sheet size check failed", "error", err)
		return
	}
	limit := int64(e.cfg.SheetSizeLimit)
	if limit > 0 && size > limit {
		if err := e.store.TrimLog(ctx, valueSheetKey, 0, size-limit-1); err != nil {
			e.log.Warn("value sheet trim failed", "error", err)
		}
	}
}

func (e *Engine) committedLocked() (btc, currency float64) {
	for _, tr := range e.traders {
		btc += tr.CommittedBTC()
		currency += tr.CommittedCurrency()
	}
	return btc, currency
}

func (e *Engine) nextCheck() time.Duration {
	return checkMin + time.Duration(e.rng.Int63n(int64(checkMax-checkMin)))
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// AddTrader registers a new trader between cycles.
func (e *Engine) AddTrader(ctx context.Context) (*trader.Trader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	view := e.manager.View()
	t, err := e.desk.Create(ctx, view.Trading.MaxDealsPerTrader)
	if err != nil {
		return nil, err
	}
	e.traders = append(e.traders, t)
	return t, nil
}

// RemoveTrader retires a trader and reloads the roster from the store.
func (e *Engine) RemoveTrader(ctx context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	present, err := e.desk.Remove(ctx, name)
	if err != nil {
		return present, err
	}
	view := e.manager.View()
	traders, err := e.desk.WakeAll(ctx, view.Trading.MaxDealsPerTrader)
	if err != nil {
		return present, fmt.Errorf("reload roster: %w", err)
	}
	e.traders = traders
	return present, nil
}

// AddShare records an investor stake and persists the ledger.
func (e *Engine) AddShare(ctx context.Context, holder string, investment float64) (wallet.Share, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	share, err := e.wallet.AddShare(holder, investment)
	if err != nil {
		return share, err
	}
	ledger, err := json.Marshal(e.wallet.Shares())
	if err != nil {
		return share, fmt.Errorf("encode share ledger: %w", err)
	}
	if err := e.store.PutRecord(ctx, sharesKey, map[string]string{"ledger": string(ledger)}); err != nil {
		return share, fmt.Errorf("persist share ledger: %w", err)
	}
	return share, nil
}

func (e *Engine) loadSharesLocked(ctx context.Context) {
	record, err := e.store.GetRecord(ctx, sharesKey)
	if err != nil {
		e.log.Warn("share ledger load failed", "error", err)
		return
	}
	raw := record["ledger"]
	if raw == "" {
		return
	}
	var shares []wallet.Share
	if err := json.Unmarshal([]byte(raw), &shares); err != nil {
		e.log.Warn("share ledger unreadable", "error", err)
		return
	}
	e.wallet.SetShares(shares)
}

// Status is the read-model served over HTTP.
type Status struct {
	Cycle      int64              `json:"cycle"`
	Simulation bool               `json:"simulation"`
	Market     market.Snapshot    `json:"market"`
	Wallet     wallet.Snapshot    `json:"wallet"`
	Value      float64            `json:"value"`
	Shares     []wallet.Share     `json:"shares"`
	Split      map[string]float64 `json:"share_split"`
	Traders    []TraderStatus     `json:"traders"`
}

type TraderStatus struct {
	Name  string        `json:"name"`
	Deals []trader.Deal `json:"deals"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	status := Status{
		Cycle:      e.cycle,
		Simulation: e.simulation,
		Market:     e.market.Current(),
		Wallet:     e.wallet.Current(),
		Value:      e.value,
		Shares:     e.wallet.Shares(),
		Split:      e.wallet.ShareSplit(),
	}
	for _, tr := range e.traders {
		status.Traders = append(status.Traders, TraderStatus{
			Name:  tr.Name,
			Deals: append([]trader.Deal(nil), tr.Deals...),
		})
	}
	return status
}

// CycleCount reports completed cycles.
func (e *Engine) CycleCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle
}

// Value reports the latest portfolio valuation.
func (e *Engine) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

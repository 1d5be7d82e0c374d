package trader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"herd/internal/config"
	"herd/internal/exchange"
	"herd/internal/market"
	"herd/internal/notify"
	"herd/internal/store"
	"herd/internal/wallet"
)

// Store keys. The counter hands out trader numbers, the index set holds the
// live trader names and each trader owns a book set of encoded deals.
const (
	counterKey = "herd_trader_number"
	indexKey   = "herd_traders"
	namePrefix = "trader_"
	bookPrefix = "book_for_"
)

// Result classifies how a trader's turn in the cycle ended.
type Result string

const (
	ResultHold        Result = "hold"
	ResultExecuted    Result = "executed"
	ResultOrderFailed Result = "order_failed"
	ResultBookkeeping Result = "bookkeeping_error"
)

// Outcome is the full account of one trader's evaluation, fed to the
// decision log and the broadcast payload.
type Outcome struct {
	Trader   string         `json:"trader"`
	Action   Action         `json:"action"`
	Result   Result         `json:"result"`
	Reason   string         `json:"reason,omitempty"`
	Buy      *BuyRationale  `json:"buy,omitempty"`
	Sell     *SellRationale `json:"sell,omitempty"`
	Deal     *Deal          `json:"deal,omitempty"`
	Combined *CombinedDeal  `json:"combined,omitempty"`
}

// Desk owns the trader roster and runs each trader's turn against the
// exchange and the store. It is single-threaded by construction: the cycle
// scheduler is its only caller.
type Desk struct {
	store      store.Store
	exchange   exchange.Client
	notifier   notify.Notifier
	log        *slog.Logger
	simulation bool

	// errorEpisode suppresses repeat alerts while the exchange keeps
	// rejecting orders. A confirmed order closes the episode.
	errorEpisode bool
}

func NewDesk(st store.Store, ex exchange.Client, n notify.Notifier, logger *slog.Logger, simulation bool) *Desk {
	if n == nil {
		n = notify.Nop{}
	}
	return &Desk{
		store:      st,
		exchange:   ex,
		notifier:   n,
		log:        logger,
		simulation: simulation,
	}
}

// Create allocates the next trader name, registers it in the index and
// persists its record.
func (d *Desk) Create(ctx context.Context, capacity int) (*Trader, error) {
	number, err := d.store.NextID(ctx, counterKey)
	if err != nil {
		return nil, fmt.Errorf("allocate trader number: %w", err)
	}
	t := &Trader{
		Name:     namePrefix + strconv.FormatInt(number, 10),
		Capacity: capacity,
	}
	t.Book = bookPrefix + t.Name
	if err := d.store.SetAdd(ctx, indexKey, t.Name); err != nil {
		return nil, fmt.Errorf("register trader %s: %w", t.Name, err)
	}
	record := map[string]string{
		"book":  t.Book,
		"deals": strconv.Itoa(capacity),
	}
	if err := d.store.PutRecord(ctx, t.Name, record); err != nil {
		return nil, fmt.Errorf("persist trader %s: %w", t.Name, err)
	}
	d.log.Info("trader created", "trader", t.Name, "capacity", capacity)
	return t, nil
}

// Wake loads one trader and its deal book from the store. Malformed book
// entries are logged and skipped so a single bad key cannot ground the
// trader.
func (d *Desk) Wake(ctx context.Context, name string, capacity int) (*Trader, error) {
	record, err := d.store.GetRecord(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load trader %s: %w", name, err)
	}
	book := record["book"]
	if book == "" {
		book = bookPrefix + name
	}
	t := &Trader{Name: name, Book: book, Capacity: capacity}

	members, err := d.store.SetMembers(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("load book for %s: %w", name, err)
	}
	for _, member := range members {
		deal, err := ParseDeal(member)
		if err != nil {
			d.log.Warn("skipping malformed deal", "trader", name, "key", member, "error", err)
			continue
		}
		t.Deals = append(t.Deals, deal)
	}
	return t, nil
}

// WakeAll loads every registered trader, ordered by trader number.
func (d *Desk) WakeAll(ctx context.Context, capacity int) ([]*Trader, error) {
	names, err := d.store.SetMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("load trader index: %w", err)
	}
	sort.Slice(names, func(i, j int) bool {
		return traderNumber(names[i]) < traderNumber(names[j])
	})
	traders := make([]*Trader, 0, len(names))
	for _, name := range names {
		t, err := d.Wake(ctx, name, capacity)
		if err != nil {
			return nil, err
		}
		traders = append(traders, t)
	}
	return traders, nil
}

// Remove retires a trader: index entry, record and book all go. Reports
// whether the trader was registered.
func (d *Desk) Remove(ctx context.Context, name string) (bool, error) {
	present, err := d.store.SetRemove(ctx, indexKey, name)
	if err != nil {
		return false, fmt.Errorf("deregister trader %s: %w", name, err)
	}
	if err := d.store.Delete(ctx, name, bookPrefix+name); err != nil {
		return present, fmt.Errorf("purge trader %s: %w", name, err)
	}
	if present {
		d.log.Info("trader removed", "trader", name)
	}
	return present, nil
}

// RecordDeal stamps the deal's identity, appends it to the live book and
// persists it. Simulation keeps the book in memory only.
func (d *Desk) RecordDeal(ctx context.Context, t *Trader, deal Deal) error {
	deal.Encode()
	t.Deals = append(t.Deals, deal)
	if d.simulation {
		return nil
	}
	if err := d.store.SetAdd(ctx, t.Book, deal.Name); err != nil {
		return fmt.Errorf("record deal for %s: %w", t.Name, err)
	}
	return nil
}

// RemoveDeal drops a deal by its identity string from the live book and the
// store.
func (d *Desk) RemoveDeal(ctx context.Context, t *Trader, name string) error {
	i := t.dealIndex(name)
	if i < 0 {
		return fmt.Errorf("deal %q not held by %s", name, t.Name)
	}
	t.Deals = append(t.Deals[:i], t.Deals[i+1:]...)
	if d.simulation {
		return nil
	}
	if _, err := d.store.SetRemove(ctx, t.Book, name); err != nil {
		return fmt.Errorf("unrecord deal for %s: %w", t.Name, err)
	}
	return nil
}

// Step runs one trader's turn: refresh per-deal bookkeeping, evaluate the
// buy gates, then the sale gates, and execute at most one order. Buying
// short-circuits selling.
func (d *Desk) Step(ctx context.Context, t *Trader, m market.Snapshot, w *wallet.Tracker, view config.View) Outcome {
	if !m.Ready() {
		return Outcome{Trader: t.Name, Action: Hold, Result: ResultHold, Reason: "market_not_ready"}
	}

	t.RefreshExtremes()
	t.RatchetMaxPrice(m.Last)

	buying, buyRationale := t.IsBuying(m, w.Current(), view)
	if buying {
		out := d.executeBuy(ctx, t, m, w, view)
		out.Buy = &buyRationale
		return out
	}

	combined := &CombinedDeal{}
	selling, sellRationale := t.IsSelling(combined, m, w.Current(), view)
	if selling {
		out := d.executeSell(ctx, t, m, w, view, combined)
		out.Sell = &sellRationale
		return out
	}

	return Outcome{
		Trader: t.Name,
		Action: Hold,
		Result: ResultHold,
		Buy:    &buyRationale,
		Sell:   &sellRationale,
	}
}

func (d *Desk) executeBuy(ctx context.Context, t *Trader, m market.Snapshot, w *wallet.Tracker, view config.View) Outcome {
	currencyAmount := buyAmount(t, view)
	deal := Deal{
		BuyPrice: m.Last / view.Trading.BidAlignment,
	}
	deal.Amount = currencyAmount / deal.BuyPrice
	deal.SellPrice = deal.BuyPrice * (1 + view.Trading.Greed + w.Current().Fee/100)

	// Burn before placement so a rejected order still cools the wallet.
	w.Burn(m.ShiftSpan)

	order, err := d.exchange.Buy(ctx, deal.Amount, deal.BuyPrice)
	if err != nil || !order.Confirmed() {
		d.reportOrderFailure(t, "buy", err)
		return Outcome{Trader: t.Name, Action: Buy, Result: ResultOrderFailed, Deal: &deal}
	}

	deal.OrderID = order.ID
	deal.MaxPrice = deal.BuyPrice
	if err := d.RecordDeal(ctx, t, deal); err != nil {
		d.log.Error("deal bookkeeping failed", "trader", t.Name, "error", err)
		return Outcome{Trader: t.Name, Action: Buy, Result: ResultBookkeeping, Deal: &deal}
	}

	d.closeErrorEpisode()
	d.log.Info("bought",
		"trader", t.Name,
		"amount", deal.Amount,
		"buy_price", deal.BuyPrice,
		"order_id", deal.OrderID)
	if !d.simulation {
		d.notify(
			fmt.Sprintf("Buying %.7f", deal.Amount),
			fmt.Sprintf("Decided to BUY %.5f at %.2f per unit (%.2f total).",
				deal.Amount, deal.BuyPrice, currencyAmount))
	}
	return Outcome{Trader: t.Name, Action: Buy, Result: ResultExecuted, Deal: &deal}
}

func (d *Desk) executeSell(ctx context.Context, t *Trader, m market.Snapshot, w *wallet.Tracker, view config.View, combined *CombinedDeal) Outcome {
	alignedSellPrice := m.Last * view.Trading.BidAlignment

	w.Burn(m.ShiftSpan)

	order, err := d.exchange.Sell(ctx, combined.Amount, alignedSellPrice)
	if err != nil || !order.Confirmed() {
		d.reportOrderFailure(t, "sell", err)
		return Outcome{Trader: t.Name, Action: Sell, Result: ResultOrderFailed, Combined: combined}
	}

	result := ResultExecuted
	for _, name := range combined.Names {
		if err := d.RemoveDeal(ctx, t, name); err != nil {
			d.log.Error("deal bookkeeping failed", "trader", t.Name, "error", err)
			result = ResultBookkeeping
		}
	}

	d.closeErrorEpisode()
	kind := "regular"
	if combined.TrailingStop {
		kind = "stop"
	}
	d.log.Info("sold",
		"trader", t.Name,
		"kind", kind,
		"amount", combined.Amount,
		"sell_price", alignedSellPrice,
		"deals", len(combined.Names))
	if !d.simulation {
		d.notify(
			fmt.Sprintf("Selling %.7f", combined.Amount),
			fmt.Sprintf("Decided to SELL (%s) %.5f at %.2f per unit (%.2f total).",
				kind, combined.Amount, alignedSellPrice, combined.Amount*alignedSellPrice))
	}
	return Outcome{Trader: t.Name, Action: Sell, Result: result, Combined: combined}
}

// reportOrderFailure logs every rejection but mails at most one alert per
// failure episode.
func (d *Desk) reportOrderFailure(t *Trader, side string, err error) {
	d.log.Error("order not confirmed", "trader", t.Name, "side", side, "error", err)
	if d.simulation || d.errorEpisode {
		d.errorEpisode = true
		return
	}
	d.errorEpisode = true
	d.notify(
		fmt.Sprintf("Error placing %s order", side),
		fmt.Sprintf("The exchange did not confirm a %s order for %s: %v.", side, t.Name, err))
}

func (d *Desk) closeErrorEpisode() {
	d.errorEpisode = false
}

func (d *Desk) notify(subject, body string) {
	if err := d.notifier.Send(subject, body); err != nil {
		d.log.Error("notification failed", "subject", subject, "error", err)
	}
}

func traderNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, namePrefix))
	if err != nil {
		return 0
	}
	return n
}

package trader

import (
	"fmt"
	"strings"

	"herd/internal/config"
	"herd/internal/market"
	"herd/internal/numeric"
	"herd/internal/wallet"
)

// Action is the verdict of one trader's evaluation in one cycle.
type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// BuyRationale is the gate-by-gate breakdown of a buy evaluation, broadcast
// to observers and appended to the decision log.
type BuyRationale struct {
	Trader    string `json:"trader"`
	FreeHands bool   `json:"free_hands"`
	Resources bool   `json:"resources"`
	Threshold bool   `json:"threshold"`
	Lowest    bool   `json:"lowest"`
	Fee       bool   `json:"fee"`
	Momentum  bool   `json:"momentum"`
	Cool      bool   `json:"cool"`
	Decision  bool   `json:"decision"`
}

// SellRationale is the sale-side counterpart.
type SellRationale struct {
	Trader         string `json:"trader"`
	WouldSellPrice bool   `json:"would_sell_price"`
	TrailingStop   bool   `json:"trailing_stop"`
	Managed        bool   `json:"managed"`
	Cool           bool   `json:"cool"`
	Decision       bool   `json:"decision"`
}

// maxLadderRatio caps the escalation search when dynamic sizing is on.
const maxLadderRatio = 3.0

// traderGreed is the per-trade upside target: configured greed plus half the
// round-trip fee.
func traderGreed(greed, feePercent float64) float64 {
	if feePercent == 0 {
		feePercent = 0.5
	}
	return greed + feePercent/200
}

// heatReady checks the cool gate shared by buying and selling: the recovered
// throttle plus the sought upside must clear 1.
func heatReady(cool, greed, feePercent float64) bool {
	return cool+traderGreed(greed, feePercent) > 1
}

// buyAmount sizes the next deal in quote currency. Bell-bottom sizing
// escalates with the open-deal count; dynamic sizing instead compounds along
// a ladder ratio fitted under the investment cap.
func buyAmount(t *Trader, view config.View) float64 {
	base := view.Trading.MaximumCurrencyPerDeal
	if !view.Strategy.BellBottom {
		return base
	}
	held := len(t.Deals)
	if view.Strategy.DynamicMultiplier {
		ratio := numeric.LadderRatio(view.Trading.MaximumInvestment, t.Capacity, maxLadderRatio, base)
		return numeric.Cumulate(base, held+1, ratio)
	}
	return (float64(held)/float64(t.Capacity) + 1) * base
}

// altitudeDrop is the required discount below the lowest open buy, in
// percent. Dynamic drop widens it along the fibonacci series as deals pile
// up.
func altitudeDrop(t *Trader, view config.View) float64 {
	drop := view.Trading.AltitudeDrop
	if view.Strategy.DynamicDrop {
		drop *= float64(numeric.Fibonacci(len(t.Deals) + 1))
	}
	return drop
}

// IsBuying evaluates the seven buy gates against the cycle's snapshots. All
// gates must hold.
func (t *Trader) IsBuying(m market.Snapshot, w wallet.Snapshot, view config.View) (bool, BuyRationale) {
	lowest := t.LowestBuyPrice()
	amount := buyAmount(t, view)

	freeHands := t.Capacity > len(t.Deals)

	// The investment cap also knocks out trading entirely when it is set
	// below a single deal.
	resources := w.Investment < view.Trading.MaximumInvestment &&
		view.Trading.MaximumInvestment > amount &&
		w.CurrencyAvailable > amount

	bid := m.Last / view.Trading.BidAlignment
	bidBelowThreshold := bid < m.Threshold

	projected := bid
	if lowest > 0 {
		projected = lowest * (1 - altitudeDrop(t, view)/100)
	}
	bidBelowLowest := bidBelowThreshold
	if lowest > 0 {
		bidBelowLowest = bid < projected
	}

	potentialBetterThanFee := m.ShiftSpan/2 > 2*(w.Fee/100)
	potentialBetterThanHeat := heatReady(w.Cool, view.Trading.Greed, w.Fee)

	momentumSignificant := !view.Strategy.MomentumTrading ||
		(m.MomentumHealthy && m.MomentumAverage > 0)

	rationale := BuyRationale{
		Trader:    fmt.Sprintf("(%s) buy (%.2f)", t.shortName(), projected),
		FreeHands: freeHands,
		Resources: resources,
		Threshold: bidBelowThreshold,
		Lowest:    bidBelowLowest,
		Fee:       potentialBetterThanFee,
		Momentum:  momentumSignificant,
		Cool:      potentialBetterThanHeat,
	}
	rationale.Decision = freeHands &&
		resources &&
		momentumSignificant &&
		bidBelowThreshold &&
		bidBelowLowest &&
		potentialBetterThanFee &&
		potentialBetterThanHeat

	return rationale.Decision, rationale
}

// IsSelling builds the combined extreme deal and evaluates the sale gates.
// The combined deal is filled in for the caller to execute against.
func (t *Trader) IsSelling(combined *CombinedDeal, m market.Snapshot, w wallet.Snapshot, view config.View) (bool, SellRationale) {
	min, max, ok := numeric.ExtremesBy(t.Deals, dealBuyPrice)

	if ok {
		combined.add(min)
		if view.Strategy.CombinedSelling && !combined.contains(max.Name) {
			combined.add(max)
		}
	}
	combined.finalize(traderGreed(view.Trading.Greed, w.Fee), view.Trading.BidAlignment)

	currentSalePrice := m.Last * view.Trading.BidAlignment

	rationale := SellRationale{
		Trader:         fmt.Sprintf("(%s) sell (%.2f)", t.shortName(), combined.WouldSellAt),
		WouldSellPrice: combined.WouldSellAt < currentSalePrice,
		Managed:        combined.Amount <= w.BTCBalance,
		Cool:           heatReady(w.Cool, view.Trading.Greed, w.Fee),
	}

	if view.Strategy.TrailingStop {
		// A stop-out only fires once the retracement confirms a reversal,
		// most of the pot is deployed and both extremes are on the block.
		rationale.TrailingStop = combined.StopPrice >= currentSalePrice &&
			2*view.Trading.MaximumCurrencyPerDeal > w.CurrencyAvailable &&
			len(combined.Names) > 1
		combined.TrailingStop = rationale.TrailingStop
	}

	priceReady := rationale.TrailingStop
	if !view.Strategy.TrailingStop {
		priceReady = rationale.WouldSellPrice
	}
	rationale.Decision = priceReady &&
		rationale.Managed &&
		rationale.Cool &&
		len(combined.Names) > 0

	return rationale.Decision, rationale
}

func (t *Trader) shortName() string {
	if _, number, found := strings.Cut(t.Name, "_"); found {
		return number
	}
	return t.Name
}

package trader

import (
	"herd/internal/numeric"
)

// Trader is one capital-bounded trading slot holding zero or more open
// deals. The in-memory instance is the only writer while awake; the durable
// copy lives in the store under the same name.
type Trader struct {
	Name     string
	Book     string
	Capacity int
	Deals    []Deal
}

// LowestBuyPrice returns the cheapest open buy, or 0 with no deals.
func (t *Trader) LowestBuyPrice() float64 {
	min, _, ok := numeric.ExtremesBy(t.Deals, dealBuyPrice)
	if !ok {
		return 0
	}
	return min.BuyPrice
}

// RefreshExtremes recomputes the is-highest/is-lowest flags across the book.
// Idempotent: rerunning on an unchanged book yields identical flags.
func (t *Trader) RefreshExtremes() {
	min, max, ok := numeric.ExtremesBy(t.Deals, dealBuyPrice)
	if !ok || min.Name == max.Name {
		return
	}
	for i := range t.Deals {
		t.Deals[i].IsHighest = t.Deals[i].Name == max.Name
		t.Deals[i].IsLowest = t.Deals[i].Name == min.Name
	}
}

// RatchetMaxPrice lifts each deal's high-water mark to the current last
// price. The mark never moves down.
func (t *Trader) RatchetMaxPrice(last float64) {
	if last <= 0 {
		return
	}
	for i := range t.Deals {
		if t.Deals[i].MaxPrice < last {
			t.Deals[i].MaxPrice = last
		}
	}
}

// CommittedBTC is the base asset held across this trader's open deals.
func (t *Trader) CommittedBTC() float64 {
	total := 0.0
	for _, d := range t.Deals {
		total += d.Amount
	}
	return total
}

// CommittedCurrency is the quote capital sunk into this trader's open deals.
func (t *Trader) CommittedCurrency() float64 {
	total := 0.0
	for _, d := range t.Deals {
		total += d.Amount * d.BuyPrice
	}
	return total
}

func (t *Trader) dealIndex(name string) int {
	for i, d := range t.Deals {
		if d.Name == name {
			return i
		}
	}
	return -1
}

func dealBuyPrice(d Deal) float64 { return d.BuyPrice }

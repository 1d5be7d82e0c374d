package trader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnconfirmedOrderID is the sentinel stored for a deal whose order was never
// confirmed by the exchange.
const UnconfirmedOrderID = "unconfirmed"

const dealPrefix = "deal"

// Deal is one open buy awaiting a matching sell. The encoded pipe string is
// the deal's identity in the durable book; amount, buy price, sell price and
// order id round-trip through it losslessly. MaxPrice and the extreme flags
// are cycle-scoped bookkeeping and are not persisted.
type Deal struct {
	Name      string
	Amount    float64
	BuyPrice  float64
	SellPrice float64
	OrderID   string

	MaxPrice  float64
	IsHighest bool
	IsLowest  bool
}

// Encode renders the durable identity string and stamps it as the deal name.
func (d *Deal) Encode() string {
	orderID := d.OrderID
	if orderID == "" {
		orderID = UnconfirmedOrderID
	}
	d.Name = strings.Join([]string{
		dealPrefix,
		formatAmount(d.Amount),
		formatAmount(d.BuyPrice),
		formatAmount(d.SellPrice),
		orderID,
	}, "|")
	return d.Name
}

// ParseDeal decodes an encoded deal string. Unparseable numeric fields come
// back as NaN rather than failing the whole book load.
func ParseDeal(encoded string) (Deal, error) {
	parts := strings.Split(encoded, "|")
	if len(parts) != 5 || parts[0] != dealPrefix {
		return Deal{}, fmt.Errorf("malformed deal key %q", encoded)
	}
	return Deal{
		Name:      encoded,
		Amount:    parseAmount(parts[1]),
		BuyPrice:  parseAmount(parts[2]),
		SellPrice: parseAmount(parts[3]),
		OrderID:   parts[4],
	}, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// CombinedDeal aggregates one or two extreme deals for a sale evaluation.
// It lives for a single cycle and is never persisted.
type CombinedDeal struct {
	Amount            float64
	CurrencyAmount    float64
	MaxCurrencyAmount float64
	BuyPrice          float64
	MaxPrice          float64
	WouldSellAt       float64
	StopPrice         float64
	TrailingStop      bool
	Names             []string
}

// add folds one source deal into the aggregate, cost-weighting by amount.
func (c *CombinedDeal) add(d Deal) {
	c.CurrencyAmount += d.BuyPrice * d.Amount
	maxPrice := d.MaxPrice
	if maxPrice == 0 {
		maxPrice = d.BuyPrice
	}
	c.MaxCurrencyAmount += maxPrice * d.Amount
	c.Amount += d.Amount
	c.Names = append(c.Names, d.Name)
}

func (c *CombinedDeal) contains(name string) bool {
	for _, n := range c.Names {
		if n == name {
			return true
		}
	}
	return false
}

// finalize computes the weighted prices and the sale triggers once all
// contributing deals are in.
func (c *CombinedDeal) finalize(greed, bidAlignment float64) {
	if c.Amount > 0 {
		c.BuyPrice = c.CurrencyAmount / c.Amount
		c.MaxPrice = c.MaxCurrencyAmount / c.Amount
		c.WouldSellAt = c.BuyPrice * (1 + greed + (1 - bidAlignment))
	}
	c.StopPrice = c.MaxPrice * (1 - greed/2)
}

package wallet

import (
	"fmt"
	"time"
)

// Raw is one balance payload as delivered by an exchange backend.
type Raw struct {
	BTCAvailable      float64
	BTCReserved       float64
	CurrencyAvailable float64
	CurrencyReserved  float64
	Fee               float64
}

// Snapshot is the decision-ready view of the wallet for one cycle.
type Snapshot struct {
	BTCAvailable      float64
	BTCReserved       float64
	BTCBalance        float64
	BTCManaged        float64
	CurrencyAvailable float64
	CurrencyReserved  float64
	CurrencyBalance   float64
	Fee               float64
	Cool              float64
	Investment        float64
	CurrencyValue     float64
}

// Share is one investor stake in the pot.
type Share struct {
	Holder     string    `json:"holder"`
	Investment float64   `json:"investment"`
	Added      time.Time `json:"added"`
}

// Tracker folds raw balances into wallet snapshots and owns the cool scalar.
// Cool recovers toward 1 once per cycle and is burned by executed trades,
// throttling trade frequency independent of price action.
type Tracker struct {
	current Snapshot
	shares  []Share
}

func NewTracker() *Tracker {
	return &Tracker{current: Snapshot{Cool: 1}}
}

// Current returns the latest snapshot.
func (t *Tracker) Current() Snapshot {
	return t.current
}

// Update rebuilds the snapshot from raw balances. committedBTC is the base
// asset held across all open deals; it feeds both the managed figure and the
// investment estimate. The cool scalar survives the rebuild.
func (t *Tracker) Update(raw Raw, committedBTC, committedCurrency float64) Snapshot {
	cool := t.current.Cool
	t.current = Snapshot{
		BTCAvailable:      raw.BTCAvailable,
		BTCReserved:       raw.BTCReserved,
		BTCBalance:        raw.BTCAvailable + raw.BTCReserved,
		BTCManaged:        committedBTC,
		CurrencyAvailable: raw.CurrencyAvailable,
		CurrencyReserved:  raw.CurrencyReserved,
		CurrencyBalance:   raw.CurrencyAvailable + raw.CurrencyReserved,
		Fee:               raw.Fee,
		Cool:              cool,
		Investment:        committedCurrency,
	}
	return t.current
}

// Valuate recomputes the total currency value of holdings at the given last
// price.
func (t *Tracker) Valuate(last float64) float64 {
	t.current.CurrencyValue = t.current.BTCBalance*last + t.current.CurrencyBalance
	return t.current.CurrencyValue
}

// Recover advances cool toward 1 by the configured recovery rate. Called once
// per cycle on queue drain.
func (t *Tracker) Recover(rate float64) float64 {
	cool := t.current.Cool
	if cool < 1 && rate < 1-cool {
		cool += rate
	} else {
		cool = 1
	}
	t.current.Cool = cool
	return cool
}

// Burn decrements cool by the market shift span after an executed trade.
func (t *Tracker) Burn(shiftSpan float64) {
	t.current.Cool -= shiftSpan
}

// AddShare records an investor stake. Holder names shorter than two
// characters and non-positive investments are rejected.
func (t *Tracker) AddShare(holder string, investment float64) (Share, error) {
	if len(holder) < 2 {
		return Share{}, fmt.Errorf("share holder %q is too short", holder)
	}
	if investment <= 0 {
		return Share{}, fmt.Errorf("share investment must be positive, got %v", investment)
	}
	share := Share{Holder: holder, Investment: investment, Added: time.Now().UTC()}
	t.shares = append(t.shares, share)
	return share, nil
}

// Shares returns a copy of the investor ledger.
func (t *Tracker) Shares() []Share {
	out := make([]Share, len(t.shares))
	copy(out, t.shares)
	return out
}

// SetShares replaces the ledger, used when loading persisted shares at wake.
func (t *Tracker) SetShares(shares []Share) {
	t.shares = append([]Share(nil), shares...)
}

// ShareSplit returns each holder's fraction of the total invested capital.
func (t *Tracker) ShareSplit() map[string]float64 {
	total := 0.0
	for _, s := range t.shares {
		total += s.Investment
	}
	split := make(map[string]float64, len(t.shares))
	if total <= 0 {
		return split
	}
	for _, s := range t.shares {
		split[s.Holder] += s.Investment / total
	}
	return split
}

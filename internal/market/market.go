package market

import (
	"fmt"
	"time"

	"herd/internal/numeric"
)

// Raw is one ticker payload as delivered by an exchange backend.
type Raw struct {
	Time time.Time
	Last float64
	High float64
	Low  float64
	Bid  float64
	Ask  float64
}

// Snapshot is the decision-ready view of the market for one cycle. It is
// replaced wholesale on every cycle and never mutated in place.
type Snapshot struct {
	Time              time.Time
	Last              float64
	High              float64
	Low               float64
	Middle            float64
	ShiftSpan         float64
	Threshold         float64
	MomentumAverage   float64
	MomentumHealthy   bool
	MomentumIndicator float64
}

// Ready reports whether the snapshot carries a usable price. Guards the
// decision path against a still-initializing tracker.
func (s Snapshot) Ready() bool {
	return s.Last > sanityFloor
}

// sanityFloor keeps decisions from firing on zero or garbage prices.
const sanityFloor = 5

type momentumSample struct {
	time  time.Time
	delta float64
}

// minMomentumSamples is how many deltas the record needs before its average
// counts as healthy.
const minMomentumSamples = 3

// Tracker folds raw tickers into market snapshots and maintains the momentum
// record over a sliding time window. A malformed ticker keeps the previous
// snapshot in place so a single bad payload never aborts a cycle.
type Tracker struct {
	span     time.Duration
	current  Snapshot
	ready    bool
	lastSeen float64
	samples  []momentumSample
}

func NewTracker(momentumSpan time.Duration) *Tracker {
	return &Tracker{span: momentumSpan}
}

// Current returns the latest snapshot. Zero value until the first good ticker.
func (t *Tracker) Current() Snapshot {
	return t.current
}

// Update builds the next snapshot from raw. On invalid input the prior
// snapshot is retained and an error returned for logging.
func (t *Tracker) Update(raw Raw, impatience float64) (Snapshot, error) {
	if err := validate(raw); err != nil {
		return t.current, err
	}

	if raw.Time.IsZero() {
		raw.Time = time.Now().UTC()
	}

	t.recordMomentum(raw)

	middle := (raw.High + raw.Low) / 2
	snapshot := Snapshot{
		Time:              raw.Time,
		Last:              raw.Last,
		High:              raw.High,
		Low:               raw.Low,
		Middle:            middle,
		MomentumAverage:   t.momentumAverage(),
		MomentumHealthy:   t.momentumHealthy(raw.Time),
		MomentumIndicator: t.momentumIndicator(),
	}
	if middle > 0 {
		snapshot.ShiftSpan = (raw.High - raw.Low) / middle
	}
	snapshot.Threshold = impatience*(raw.High-middle) + middle

	t.current = snapshot
	t.ready = true
	return snapshot, nil
}

func validate(raw Raw) error {
	if raw.Last <= 0 {
		return fmt.Errorf("ticker last price %v is not positive", raw.Last)
	}
	if raw.High <= 0 || raw.Low <= 0 {
		return fmt.Errorf("ticker range %v-%v is not positive", raw.Low, raw.High)
	}
	if raw.High < raw.Low {
		return fmt.Errorf("ticker high %v below low %v", raw.High, raw.Low)
	}
	return nil
}

func (t *Tracker) recordMomentum(raw Raw) {
	if t.lastSeen > 0 {
		t.samples = append(t.samples, momentumSample{
			time:  raw.Time,
			delta: raw.Last - t.lastSeen,
		})
	}
	t.lastSeen = raw.Last

	// Drop samples that fell out of the window.
	cutoff := raw.Time.Add(-t.span)
	kept := t.samples[:0]
	for _, s := range t.samples {
		if s.time.After(cutoff) {
			kept = append(kept, s)
		}
	}
	t.samples = kept
}

func (t *Tracker) momentumAverage() float64 {
	deltas := make([]float64, len(t.samples))
	for i, s := range t.samples {
		deltas[i] = s.delta
	}
	return numeric.Average(deltas)
}

// momentumHealthy requires enough samples and a record old enough to cover
// most of the configured span.
func (t *Tracker) momentumHealthy(now time.Time) bool {
	if len(t.samples) < minMomentumSamples {
		return false
	}
	oldest := t.samples[0].time
	return now.Sub(oldest) >= t.span/2
}

func (t *Tracker) momentumIndicator() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1].delta
}

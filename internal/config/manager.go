package config

import "sync"

// View is the immutable-per-cycle slice of configuration the decision engine
// reads. The scheduler takes one View at the top of a cycle and every trader
// evaluated in that cycle sees the same values.
type View struct {
	Trading  Trading
	Strategy Strategy
}

// Manager owns the live configuration and serializes runtime updates.
// Updates only become visible to trading on the next cycle's View.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	initial Trading
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, initial: cfg.Trading}
}

// View returns a copy of the trading and strategy configuration.
func (m *Manager) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View{Trading: m.cfg.Trading, Strategy: m.cfg.Strategy}
}

// Config returns a copy of the full configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// UpdateTrading replaces the trading parameters after validation. On
// rejection the prior configuration stays in effect.
func (m *Manager) UpdateTrading(t Trading) error {
	if err := ValidateTrading(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Trading = t
	return nil
}

// UpdateStrategy replaces the feature toggles. Toggles carry no bounds, so
// there is nothing to validate.
func (m *Manager) UpdateStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Strategy = s
}

// ResetTrading restores the trading parameters the process started with.
func (m *Manager) ResetTrading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Trading = m.initial
}

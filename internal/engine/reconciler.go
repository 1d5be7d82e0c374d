package engine

import (
	"context"
	"time"
)

// driftTolerance is the base-asset mismatch, as a fraction of the managed
// amount, above which the books are considered out of sync with the
// exchange.
const driftTolerance = 0.01

// ReconcileLoop periodically checks that the deal books are still covered by
// the exchange balance. Deals record fills the bot believes happened; a
// manual withdrawal or an unseen partial fill leaves books claiming more
// than the account holds, and self-healing that silently would hide real
// losses, so drift is only reported.
func (e *Engine) ReconcileLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcileOnce(ctx)
		}
	}
}

func (e *Engine) reconcileOnce(ctx context.Context) {
	raw, err := e.exchange.Balance(ctx)
	if err != nil {
		e.log.Warn("reconcile balance check failed", "error", err)
		return
	}

	e.mu.Lock()
	managed, invested := e.committedLocked()
	traders := len(e.traders)
	e.mu.Unlock()

	held := raw.BTCAvailable + raw.BTCReserved
	if managed > 0 && held < managed*(1-driftTolerance) {
		e.log.Error("deal books exceed exchange holdings",
			"managed", managed,
			"held", held,
			"invested", invested,
			"traders", traders)
		return
	}
	e.log.Info("books reconciled",
		"managed", managed,
		"held", held,
		"currency", raw.CurrencyAvailable+raw.CurrencyReserved)
}

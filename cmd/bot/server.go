package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"herd/internal/config"
	"herd/internal/engine"
	"herd/internal/hub"
)

// newMux builds the control surface: roster management, live configuration
// updates, share bookkeeping, websocket telemetry and Prometheus metrics.
func newMux(eng *engine.Engine, manager *config.Manager, h *hub.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Status())
	})

	mux.HandleFunc("POST /traders", func(w http.ResponseWriter, r *http.Request) {
		t, err := eng.AddTrader(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": t.Name})
	})

	mux.HandleFunc("DELETE /traders/{name}", func(w http.ResponseWriter, r *http.Request) {
		present, err := eng.RemoveTrader(r.Context(), r.PathValue("name"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !present {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	})

	mux.HandleFunc("GET /config", func(w http.ResponseWriter, r *http.Request) {
		view := manager.View()
		writeJSON(w, http.StatusOK, map[string]any{
			"trading":  view.Trading,
			"strategy": view.Strategy,
		})
	})

	mux.HandleFunc("POST /config/trading", func(w http.ResponseWriter, r *http.Request) {
		// Updates start from the current values so a partial body only
		// touches the keys it names.
		trading := manager.View().Trading
		if err := json.NewDecoder(r.Body).Decode(&trading); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := manager.UpdateTrading(trading); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, manager.View().Trading)
	})

	mux.HandleFunc("POST /config/strategy", func(w http.ResponseWriter, r *http.Request) {
		strategy := manager.View().Strategy
		if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		manager.UpdateStrategy(strategy)
		writeJSON(w, http.StatusOK, manager.View().Strategy)
	})

	mux.HandleFunc("POST /config/reset", func(w http.ResponseWriter, r *http.Request) {
		manager.ResetTrading()
		writeJSON(w, http.StatusOK, manager.View().Trading)
	})

	mux.HandleFunc("POST /shares", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Holder     string  `json:"holder"`
			Investment float64 `json:"investment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		share, err := eng.AddShare(r.Context(), body.Holder, body.Investment)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, share)
	})

	mux.HandleFunc("GET /ws", h.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type httpError struct{ message string }

func (e httpError) Error() string { return e.message }

var errNotFound = httpError{"not found"}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

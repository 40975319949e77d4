// Package admin serves the agent's local operator endpoints.
//
// Routes:
//
//	GET  /metrics        buffer depth and flush counters, Prometheus text format
//	POST /flush          trigger an immediate flush, reports whether it succeeded
//	POST /buffer/clear   discard every buffered entry without sending it
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/sensorlog/sensorlog/agent/internal/shipper"
)

// Shipper is the part of *shipper.Shipper the admin routes drive.
type Shipper interface {
	Flush(ctx context.Context) bool
	ClearBuffer() int
	Stats() shipper.Stats
}

// flushTimeout bounds a manual flush so a stuck collector cannot pin the
// admin request forever.
const flushTimeout = 30 * time.Second

type handler struct {
	sh  Shipper
	mux *http.ServeMux
}

// New returns the admin HTTP handler.
func New(sh Shipper) http.Handler {
	h := &handler{sh: sh, mux: http.NewServeMux()}
	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/flush", h.flush)
	h.mux.HandleFunc("/buffer/clear", h.clear)
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families(h.sh.Stats()) {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("admin: encode metrics", "err", err)
			return
		}
	}
}

type flushResponse struct {
	Success  bool `json:"success"`
	Buffered int  `json:"buffered"`
}

func (h *handler) flush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), flushTimeout)
	defer cancel()

	ok := h.sh.Flush(ctx)
	slog.Info("admin: manual flush", "success", ok)
	jsonResp(w, http.StatusOK, flushResponse{Success: ok, Buffered: h.sh.Stats().Buffered})
}

type clearResponse struct {
	Discarded int `json:"discarded"`
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n := h.sh.ClearBuffer()
	slog.Warn("admin: buffer cleared by operator", "discarded", n)
	jsonResp(w, http.StatusOK, clearResponse{Discarded: n})
}

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]string{"error": msg})
}

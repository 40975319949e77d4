package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sensorlog/sensorlog/server/internal/alerts"
	"github.com/sensorlog/sensorlog/server/internal/store"
)

// AlertSource supplies the alert state shown by the API.
type AlertSource interface {
	Active() []*alerts.Alert
	FiringCount() int
}

// Handler serves /api/v1/*.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler. al may be nil.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.get(h.health))
	h.mux.HandleFunc("/api/v1/devices", h.get(h.devices))
	h.mux.HandleFunc("/api/v1/series", h.get(h.listSeries))
	h.mux.HandleFunc("/api/v1/series/", h.get(h.getSeries))
	h.mux.HandleFunc("/api/v1/alerts", h.get(h.listAlerts))
	h.mux.HandleFunc("/api/v1/snapshot", h.get(h.snapshot))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) get(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	series := h.store.List()
	tot := h.store.Totals()

	resp := HealthResponse{
		Status:      "unknown",
		SeriesCount: tot.Series,
		Readings:    tot.Readings,
		Duplicates:  tot.Duplicates,
		NonFinite:   tot.NonFinite,
	}
	if h.alerts != nil {
		resp.FiringAlerts = h.alerts.FiringCount()
	}

	devices := make(map[string]struct{})
	if len(series) > 0 {
		resp.Status = "healthy"
	}
	for _, s := range series {
		devices[s.Device] = struct{}{}
		if degraded(computeDiagnostics(s, h.store.TTL(), now)) {
			resp.Status = "degraded"
		}
	}
	resp.DeviceCount = len(devices)
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) devices(w http.ResponseWriter, r *http.Request) {
	out := make([]DeviceResponse, 0)
	index := make(map[string]int)
	var lastSeen []time.Time

	// List is sorted by device, then sensor.
	for _, s := range h.store.List() {
		i, ok := index[s.Device]
		if !ok {
			i = len(out)
			index[s.Device] = i
			out = append(out, DeviceResponse{DeviceName: s.Device, Sensors: []string{}})
			lastSeen = append(lastSeen, time.Time{})
		}
		out[i].Sensors = append(out[i].Sensors, s.Sensor)
		out[i].Readings += s.Readings
		if s.UpdatedAt.After(lastSeen[i]) {
			lastSeen[i] = s.UpdatedAt
		}
	}
	for i := range out {
		out[i].LastSeen = rfc3339(lastSeen[i])
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) listSeries(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store).Series)
}

// getSeries serves /api/v1/series/{device}/{sensor}.
func (h *Handler) getSeries(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/series/"), "/")
	if rest == "" {
		h.listSeries(w, r)
		return
	}
	device, sensor, ok := strings.Cut(rest, "/")
	if !ok || device == "" || sensor == "" {
		jsonErr(w, http.StatusNotFound, "want /api/v1/series/{device}/{sensor}")
		return
	}

	s, found := h.store.Get(device, sensor)
	now := time.Now()
	if !found || now.Sub(s.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "series not found")
		return
	}

	resp := toSeriesResponse(s, h.store.TTL(), now)
	resp.History = make([]ReadingResponse, 0, len(s.History))
	for _, rd := range s.History {
		resp.History = append(resp.History, toReading(rd))
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot renders every live series in st.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	now := time.Now()
	list := st.List()
	out := make([]SeriesResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSeriesResponse(s, st.TTL(), now))
	}
	return SnapshotResponse{
		Series:      out,
		GeneratedAt: rfc3339(now),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toSeriesResponse(s store.Series, ttl time.Duration, now time.Time) SeriesResponse {
	return SeriesResponse{
		DeviceName:  s.Device,
		SensorName:  s.Sensor,
		Latest:      toReading(s.Latest),
		Readings:    s.Readings,
		Duplicates:  s.Duplicates,
		NonFinite:   s.NonFinite,
		FirstSeen:   rfc3339(s.FirstSeen),
		LastSeen:    rfc3339(s.UpdatedAt),
		Diagnostics: computeDiagnostics(s, ttl, now),
	}
}

func toReading(r store.Reading) ReadingResponse {
	out := ReadingResponse{
		ExperimentID: r.ExperimentID,
		Timestamp:    r.Timestamp,
		ReceivedAt:   rfc3339(r.ReceivedAt),
	}
	if v := float64(r.Value); !math.IsNaN(v) && !math.IsInf(v, 0) {
		// Shortest float32 form, so 21.7 stays 21.7 rather than 21.700000762939453.
		v, _ = strconv.ParseFloat(strconv.FormatFloat(v, 'g', -1, 32), 64)
		out.Value = &v
	}
	return out
}

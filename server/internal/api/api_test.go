package api_test

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sensorlog/sensorlog/pkg/types"
	"github.com/sensorlog/sensorlog/server/internal/alerts"
	"github.com/sensorlog/sensorlog/server/internal/api"
	"github.com/sensorlog/sensorlog/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

func newStore(entries ...types.Entry) *store.Store {
	st := store.New(5*time.Minute, 50)
	for _, e := range entries {
		st.Put("agent-1", e)
	}
	return st
}

// reading numbers the entry after its monotonic timestamp, so repeating ts
// on a series reproduces a redelivery.
func reading(device, sensor, ts string, v float32) types.Entry {
	seq, _ := strconv.ParseUint(ts, 10, 64)
	return types.Entry{ExperimentID: "exp1", DeviceName: device, SensorName: sensor, Timestamp: ts, Value: v, Seq: seq}
}

type fakeAlerts struct{ list []*alerts.Alert }

func (f fakeAlerts) Active() []*alerts.Alert { return f.list }
func (f fakeAlerts) FiringCount() int        { return len(f.list) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func hintKeys(hs []api.DiagnosticHint) map[string]bool {
	out := make(map[string]bool)
	for _, h := range hs {
		out[h.Key] = true
	}
	return out
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, api.New(newStore(), nil), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "unknown" || resp.SeriesCount != 0 {
		t.Errorf("health = %+v, want unknown with no series", resp)
	}
}

func TestHealth_Counts(t *testing.T) {
	st := newStore(
		reading("dev1", "tempC", "1", 21.5),
		reading("dev1", "tempC", "1", 21.5), // duplicate
		reading("dev1", "humidity", "1", 55),
		reading("dev2", "tempC", "1", 19),
	)
	al := fakeAlerts{list: []*alerts.Alert{{RuleName: "hot", State: "firing"}}}
	rr := get(t, api.New(st, al), "/api/v1/health")

	var resp api.HealthResponse
	decode(t, rr, &resp)
	want := api.HealthResponse{
		Status:       "healthy",
		DeviceCount:  2,
		SeriesCount:  3,
		Readings:     3,
		Duplicates:   1,
		FiringAlerts: 1,
	}
	if resp != want {
		t.Errorf("health = %+v, want %+v", resp, want)
	}
}

func TestHealth_DegradedOnNonFinite(t *testing.T) {
	st := newStore(reading("dev1", "tempC", "1", float32(math.NaN())))
	var resp api.HealthResponse
	decode(t, get(t, api.New(st, nil), "/api/v1/health"), &resp)
	if resp.Status != "degraded" || resp.NonFinite != 1 {
		t.Errorf("health = %+v, want degraded with 1 non-finite", resp)
	}
}

// --- /api/v1/devices --------------------------------------------------------

func TestDevices(t *testing.T) {
	st := newStore(
		reading("dev2", "tempC", "1", 1),
		reading("dev1", "tempC", "1", 1),
		reading("dev1", "humidity", "1", 1),
		reading("dev1", "humidity", "2", 2),
	)
	var resp []api.DeviceResponse
	decode(t, get(t, api.New(st, nil), "/api/v1/devices"), &resp)

	if len(resp) != 2 {
		t.Fatalf("got %d devices, want 2", len(resp))
	}
	d := resp[0]
	if d.DeviceName != "dev1" || len(d.Sensors) != 2 || d.Sensors[0] != "humidity" || d.Readings != 3 {
		t.Errorf("devices[0] = %+v", d)
	}
	if d.LastSeen == "" {
		t.Error("last_seen empty")
	}
}

// --- /api/v1/series ---------------------------------------------------------

func TestSeries_List(t *testing.T) {
	st := newStore(reading("dev1", "tempC", "1", 21.7), reading("dev1", "humidity", "1", 55))
	var resp []api.SeriesResponse
	decode(t, get(t, api.New(st, nil), "/api/v1/series"), &resp)

	if len(resp) != 2 {
		t.Fatalf("got %d series, want 2", len(resp))
	}
	s := resp[1]
	if s.SensorName != "tempC" || s.Latest.Value == nil || *s.Latest.Value != 21.7 {
		t.Errorf("series[1] = %+v", s)
	}
	if len(s.History) != 0 {
		t.Error("list should omit history")
	}
	if !hintKeys(s.Diagnostics)["healthy"] {
		t.Errorf("diagnostics = %+v, want healthy", s.Diagnostics)
	}
}

func TestSeries_Get(t *testing.T) {
	st := newStore(
		reading("dev1", "tempC", "1", 21.5),
		reading("dev1", "tempC", "2", float32(math.Inf(1))),
		reading("dev1", "tempC", "2", float32(math.Inf(1))),
	)
	h := api.New(st, nil)

	rr := get(t, h, "/api/v1/series/dev1/tempC")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.SeriesResponse
	decode(t, rr, &resp)

	if len(resp.History) != 2 || resp.History[0].Timestamp != "1" {
		t.Fatalf("history = %+v", resp.History)
	}
	if resp.Latest.Value != nil {
		t.Errorf("non-finite latest value should be null, got %v", *resp.Latest.Value)
	}
	keys := hintKeys(resp.Diagnostics)
	if !keys["non_finite"] || !keys["duplicates"] || keys["healthy"] {
		t.Errorf("diagnostics = %+v", resp.Diagnostics)
	}
}

func TestSeries_Flatline(t *testing.T) {
	var entries []types.Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, reading("dev1", "tempC", fmt.Sprint(i), 20))
	}
	var resp api.SeriesResponse
	decode(t, get(t, api.New(newStore(entries...), nil), "/api/v1/series/dev1/tempC"), &resp)
	if !hintKeys(resp.Diagnostics)["flatline"] {
		t.Errorf("diagnostics = %+v, want flatline", resp.Diagnostics)
	}
}

func TestSeries_NotFound(t *testing.T) {
	h := api.New(newStore(reading("dev1", "tempC", "1", 1)), nil)
	for _, path := range []string{"/api/v1/series/dev1/pressure", "/api/v1/series/dev1"} {
		if rr := get(t, h, path); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s: got %d, want 404", path, rr.Code)
		}
	}
}

// --- /api/v1/alerts and /api/v1/snapshot ------------------------------------

func TestAlerts(t *testing.T) {
	rr := get(t, api.New(newStore(), nil), "/api/v1/alerts")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("no alert source: body = %q, want []", body)
	}

	al := fakeAlerts{list: []*alerts.Alert{{ID: "a1", RuleName: "hot", State: "firing"}}}
	var resp []alerts.Alert
	decode(t, get(t, api.New(newStore(), al), "/api/v1/alerts"), &resp)
	if len(resp) != 1 || resp[0].ID != "a1" {
		t.Errorf("alerts = %+v", resp)
	}
}

func TestSnapshot(t *testing.T) {
	st := newStore(reading("dev1", "tempC", "1", 1))
	var resp api.SnapshotResponse
	decode(t, get(t, api.New(st, nil), "/api/v1/snapshot"), &resp)

	if len(resp.Series) != 1 {
		t.Errorf("series: got %d, want 1", len(resp.Series))
	}
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("generated_at %q: %v", resp.GeneratedAt, err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore(), nil)
	for _, path := range []string{"/api/v1/health", "/api/v1/series", "/api/v1/snapshot"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

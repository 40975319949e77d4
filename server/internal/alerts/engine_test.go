package alerts

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sensorlog/sensorlog/server/internal/config"
)

func newTestEngine(t *testing.T, rules ...config.AlertRule) (*Engine, chan *Alert, *time.Time) {
	t.Helper()
	e := New(config.AlertsConfig{Rules: rules})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	delivered := make(chan *Alert, 16)
	e.deliver = func(a *Alert) { delivered <- a }
	return e, delivered, &now
}

func next(t *testing.T, ch chan *Alert) *Alert {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
		return nil
	}
}

func TestEvaluate_FireAndResolve(t *testing.T) {
	e, ch, _ := newTestEngine(t, config.AlertRule{Name: "hot", Sensor: "tempC", Condition: "value > 30", Severity: "critical"})

	e.Evaluate("dev1", "tempC", 31)
	a := next(t, ch)
	if a.State != "firing" || a.Device != "dev1" || a.Value != 31 || a.Severity != "critical" {
		t.Errorf("fired alert = %+v", a)
	}
	if a.ID == "" {
		t.Error("alert has no ID")
	}
	if e.FiringCount() != 1 {
		t.Errorf("FiringCount = %d, want 1", e.FiringCount())
	}

	// Still hot: no second notification.
	e.Evaluate("dev1", "tempC", 35)

	e.Evaluate("dev1", "tempC", 25)
	r := next(t, ch)
	if r.State != "resolved" || r.ResolvedAt == nil || r.ID != a.ID {
		t.Errorf("resolved alert = %+v", r)
	}
	if e.FiringCount() != 0 {
		t.Errorf("FiringCount = %d, want 0", e.FiringCount())
	}
	if got := e.Active(); len(got) != 1 || got[0].State != "resolved" {
		t.Errorf("Active() = %+v, want the recently resolved alert", got)
	}
}

func TestEvaluate_SensorFilter(t *testing.T) {
	e, _, _ := newTestEngine(t, config.AlertRule{Name: "hot", Sensor: "tempC", Condition: "value > 30"})
	e.Evaluate("dev1", "humidity", 80)
	if e.FiringCount() != 0 {
		t.Error("rule for tempC fired on humidity")
	}
}

func TestEvaluate_AnySensor(t *testing.T) {
	e, ch, _ := newTestEngine(t, config.AlertRule{Name: "negative", Condition: "value < 0"})
	e.Evaluate("dev1", "humidity", -1)
	e.Evaluate("dev2", "tempC", -3)
	next(t, ch)
	next(t, ch)
	if e.FiringCount() != 2 {
		t.Errorf("FiringCount = %d, want one per series", e.FiringCount())
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	e, ch, now := newTestEngine(t, config.AlertRule{Name: "hot", Condition: "value > 30", Cooldown: time.Minute})

	e.Evaluate("dev1", "tempC", 31)
	next(t, ch)
	e.Evaluate("dev1", "tempC", 20)
	next(t, ch) // resolved

	*now = now.Add(30 * time.Second)
	e.Evaluate("dev1", "tempC", 31)
	if e.FiringCount() != 0 {
		t.Fatal("re-fired inside cooldown")
	}

	*now = now.Add(time.Minute)
	e.Evaluate("dev1", "tempC", 31)
	if a := next(t, ch); a.State != "firing" {
		t.Errorf("after cooldown got %+v", a)
	}
}

func TestEvaluate_NonFiniteIgnored(t *testing.T) {
	e, ch, _ := newTestEngine(t, config.AlertRule{Name: "hot", Condition: "value > 30"})
	e.Evaluate("dev1", "tempC", 31)
	next(t, ch)

	e.Evaluate("dev1", "tempC", math.NaN())
	if e.FiringCount() != 1 {
		t.Error("NaN reading resolved an active alert")
	}
	e.Evaluate("dev1", "tempC", math.Inf(1))
	select {
	case a := <-ch:
		t.Errorf("unexpected delivery %+v", a)
	default:
	}
}

func TestNotify_Webhooks(t *testing.T) {
	got := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		got <- m
	}))
	defer srv.Close()

	t.Setenv("TEST_SLACK_URL", srv.URL)
	t.Setenv("TEST_TEAMS_URL", srv.URL)
	e := New(config.AlertsConfig{Webhooks: []config.WebhookConfig{
		{Type: "slack", URLEnv: "TEST_SLACK_URL"},
		{Type: "teams", URLEnv: "TEST_TEAMS_URL"},
		{Type: "http", URLEnv: "UNSET_URL_ENV"},
	}})

	e.notify(&Alert{RuleName: "hot", Severity: "critical", State: "firing", Message: "hot on dev1/tempC"})

	slack := <-got
	if txt, _ := slack["text"].(string); txt != "*[CRITICAL] hot* hot on dev1/tempC" {
		t.Errorf("slack text = %q", txt)
	}
	teams := <-got
	if teams["@type"] != "MessageCard" || teams["themeColor"] != "FF4F6A" {
		t.Errorf("teams payload = %+v", teams)
	}
	select {
	case m := <-got:
		t.Errorf("unexpected third delivery %+v", m)
	default:
	}
}

func TestPayload_UnknownType(t *testing.T) {
	if _, err := payload("pager", &Alert{}); err == nil {
		t.Error("expected error for unknown webhook type")
	}
}

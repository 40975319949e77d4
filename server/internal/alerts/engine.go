package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sensorlog/sensorlog/server/internal/config"
)

const (
	maxHistoryLen = 200
	recentWindow  = time.Hour
)

// Alert is one firing or resolved alert.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Device     string     `json:"device_name"`
	Sensor     string     `json:"sensor_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // firing | resolved
}

// Engine evaluates rules against incoming readings. It is safe for
// concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time

	// deliver is replaced in tests.
	deliver func(*Alert)

	mu       sync.Mutex
	active   map[string]*Alert    // rule/device/sensor
	lastFire map[string]time.Time // for cooldown
	history  []*Alert             // resolved, newest last
}

// New creates an Engine. With no rules, Evaluate is a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    compile(cfg.Rules),
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	e.deliver = e.notify
	return e
}

// Evaluate runs every matching rule against one stored reading.
func (e *Engine) Evaluate(device, sensor string, value float64) {
	if len(e.rules) == 0 || !finite(value) {
		return
	}
	now := e.now()

	for _, r := range e.rules {
		if !r.appliesTo(sensor) {
			continue
		}
		key := r.Name + "/" + device + "/" + sensor
		if r.fires(value) {
			e.fire(r, key, device, sensor, value, now)
		} else {
			e.resolve(key, now)
		}
	}
}

func (e *Engine) fire(r rule, key, device, sensor string, value float64, now time.Time) {
	cooldown := r.Cooldown
	if cooldown <= 0 {
		cooldown = config.DefaultRuleCooldown
	}
	sev := r.Severity
	if sev == "" {
		sev = "warning"
	}

	e.mu.Lock()
	if _, firing := e.active[key]; firing || now.Sub(e.lastFire[key]) < cooldown {
		e.mu.Unlock()
		return
	}
	a := &Alert{
		ID:       uuid.NewString(),
		RuleName: r.Name,
		Device:   device,
		Sensor:   sensor,
		Severity: sev,
		Value:    value,
		Message:  fmt.Sprintf("%s on %s/%s: %s (value %.3g)", r.Name, device, sensor, r.Condition, value),
		FiredAt:  now,
		State:    "firing",
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	e.mu.Unlock()

	slog.Warn("alert fired", "rule", r.Name, "device", device, "sensor", sensor, "value", value, "severity", sev)
	go e.deliver(&cp)
}

func (e *Engine) resolve(key string, now time.Time) {
	e.mu.Lock()
	a, ok := e.active[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.active, key)
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	e.mu.Unlock()

	slog.Info("alert resolved", "rule", a.RuleName, "device", a.Device, "sensor", a.Sensor)
	go e.deliver(&cp)
}

// Active returns every firing alert plus those resolved within the last
// hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

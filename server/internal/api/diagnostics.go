package api

import (
	"fmt"
	"math"
	"time"

	"github.com/sensorlog/sensorlog/server/internal/store"
)

// flatlineRun is how many identical consecutive readings count as a stuck
// sensor.
const flatlineRun = 10

// DiagnosticHint is one short finding about a series, shown next to it in
// dashboards.
type DiagnosticHint struct {
	Key    string   `json:"key"`
	Level  string   `json:"level"` // ok | info | warning
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints for s as of now. ttl is the store's
// eviction age.
func computeDiagnostics(s store.Series, ttl time.Duration, now time.Time) []DiagnosticHint {
	var hints []DiagnosticHint

	if idle := now.Sub(s.UpdatedAt); idle > ttl/2 {
		mins := idle.Minutes()
		hints = append(hints, DiagnosticHint{
			Key:   "stale",
			Level: "warning",
			Title: "No recent data",
			Detail: fmt.Sprintf(
				"Nothing has arrived for this series in %.0f minutes. "+
					"The device may be offline or its link may be down; agents keep buffering "+
					"while disconnected and will deliver the backlog when they reconnect. "+
					"The series is dropped after %s without data.",
				mins, ttl),
			Value: &mins,
		})
	}

	if s.Duplicates > 0 {
		v := float64(s.Duplicates)
		hints = append(hints, DiagnosticHint{
			Key:   "duplicates",
			Level: "info",
			Title: fmt.Sprintf("%d redelivered", s.Duplicates),
			Detail: "Some readings arrived more than once and the repeats were dropped. " +
				"This happens when a batch reaches the collector but the agent never sees the " +
				"response, for example on a flaky link. A steadily growing count points at " +
				"timeouts between the agent and the collector.",
			Value: &v,
		})
	}

	if s.NonFinite > 0 {
		v := float64(s.NonFinite)
		hints = append(hints, DiagnosticHint{
			Key:   "non_finite",
			Level: "warning",
			Title: "Invalid readings",
			Detail: fmt.Sprintf(
				"%d readings were NaN or infinite and are shown as null. "+
					"This usually means the sensor returned an error value or a scale "+
					"factor divided by zero.", s.NonFinite),
			Value: &v,
		})
	}

	if n := flatRun(s.History); n >= flatlineRun {
		v := float64(n)
		hints = append(hints, DiagnosticHint{
			Key:   "flatline",
			Level: "info",
			Title: "Value not changing",
			Detail: fmt.Sprintf(
				"The last %d readings are identical. A real signal nearly always has some "+
					"noise, so check that the sensor is not stuck or disconnected.", n),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: "Readings are arriving, none were invalid and none were redelivered.",
		})
	}
	return hints
}

// flatRun returns the length of the run of identical values at the end of h.
func flatRun(h []store.Reading) int {
	if len(h) == 0 {
		return 0
	}
	last := h[len(h)-1].Value
	if math.IsNaN(float64(last)) {
		return 0
	}
	n := 0
	for i := len(h) - 1; i >= 0 && h[i].Value == last; i-- {
		n++
	}
	return n
}

func degraded(hints []DiagnosticHint) bool {
	for _, h := range hints {
		if h.Level == "warning" {
			return true
		}
	}
	return false
}

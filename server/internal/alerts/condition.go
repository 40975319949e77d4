package alerts

import (
	"math"

	"github.com/sensorlog/sensorlog/server/internal/config"
)

// rule is a config.AlertRule with its condition parsed once up front.
type rule struct {
	config.AlertRule
	op        string
	threshold float64
}

func compile(rules []config.AlertRule) []rule {
	out := make([]rule, 0, len(rules))
	for _, r := range rules {
		op, th, err := config.ParseCondition(r.Condition)
		if err != nil {
			// Load already validated conditions; a bad one here is dropped.
			continue
		}
		out = append(out, rule{AlertRule: r, op: op, threshold: th})
	}
	return out
}

func (r rule) appliesTo(sensor string) bool {
	return r.Sensor == "" || r.Sensor == sensor
}

// fires reports whether v satisfies the rule. Non-finite values never fire
// and never resolve an active alert.
func (r rule) fires(v float64) bool {
	switch r.op {
	case ">":
		return v > r.threshold
	case ">=":
		return v >= r.threshold
	case "<":
		return v < r.threshold
	case "<=":
		return v <= r.threshold
	case "==":
		return v == r.threshold
	case "!=":
		return v != r.threshold
	default:
		return false
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

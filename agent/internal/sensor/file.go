package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// fileSensor reads a single number from a text file, the way Linux exposes
// most hardware sensors under /sys.
type fileSensor struct {
	name  string
	path  string
	scale float64
}

func (s *fileSensor) Name() string { return s.name }

func (s *fileSensor) Read(_ context.Context) ([]Reading, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", s.name, err)
	}
	raw := strings.TrimSpace(string(data))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: parse %q: %w", s.name, raw, err)
	}
	return []Reading{{Sensor: s.name, Value: float32(v * s.scale)}}, nil
}

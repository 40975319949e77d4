package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/config"
	"github.com/sensorlog/sensorlog/agent/internal/httpx"
)

const defaultReadTimeout = 5 * time.Second

// ErrUnsupported is returned by New for an unknown sensor type.
var ErrUnsupported = errors.New("sensor: unsupported type")

// Reading is one value produced by a sensor, already scaled.
type Reading struct {
	Sensor string
	Value  float32
}

// Sensor is the common interface implemented by every measurement source.
type Sensor interface {
	// Name is the configured sensor name.
	Name() string

	// Read samples the source once.
	Read(ctx context.Context) ([]Reading, error)
}

// New returns the appropriate Sensor for the given configuration.
// It builds any HTTP client once and reuses it across reads.
func New(s config.Sensor) (Sensor, error) {
	scale := s.Scale
	if scale == 0 {
		scale = config.DefaultSensorScale
	}
	switch s.Type {
	case "prometheus":
		client, err := httpx.NewClient(s.Auth, s.TLS, defaultReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: build http client: %w", s.Name, err)
		}
		return &promSensor{name: s.Name, endpoint: s.Endpoint, metric: s.Metric, scale: scale, client: client}, nil
	case "file":
		return &fileSensor{name: s.Name, path: s.Path, scale: scale}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupported, s.Type)
	}
}

// Package sampler periodically reads every configured sensor and logs each
// reading through the shipper.
package sampler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/sensor"
	"github.com/sensorlog/sensorlog/agent/internal/timestamp"
)

// Logger is the subset of the shipper the sampler writes to.
type Logger interface {
	Log(raw timestamp.Raw, experimentID, deviceName, sensorName string, value float32)
}

// Clock supplies the raw time stamped on each reading.
type Clock interface {
	Now() timestamp.Raw
}

// Sampler owns the sensor polling loop for one device.
type Sampler struct {
	sensors      []sensor.Sensor
	log          Logger
	clock        Clock
	experimentID string
	deviceName   string
	interval     time.Duration
}

// New returns a Sampler that stamps every reading with experimentID and
// deviceName.
func New(sensors []sensor.Sensor, log Logger, clock Clock, experimentID, deviceName string, interval time.Duration) *Sampler {
	return &Sampler{
		sensors:      sensors,
		log:          log,
		clock:        clock,
		experimentID: experimentID,
		deviceName:   deviceName,
		interval:     interval,
	}
}

// Run samples every interval until ctx is cancelled. The first sample is
// taken immediately.
func (s *Sampler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Tick reads each sensor once and returns the number of readings logged.
// A failing sensor is logged and skipped; the others still report.
func (s *Sampler) Tick(ctx context.Context) int {
	n := 0
	for _, sn := range s.sensors {
		readings, err := sn.Read(ctx)
		if err != nil {
			slog.Warn("sampler: sensor read failed", "sensor", sn.Name(), "err", err)
			continue
		}
		for _, r := range readings {
			// Stamp at the moment of logging, not once per tick.
			s.log.Log(s.clock.Now(), s.experimentID, s.deviceName, r.Sensor, r.Value)
			n++
		}
	}
	return n
}

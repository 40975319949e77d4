package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/sensor"
	"github.com/sensorlog/sensorlog/agent/internal/timestamp"
)

type logged struct {
	raw                 timestamp.Raw
	exp, device, sensor string
	value               float32
}

type recorder struct {
	mu      sync.Mutex
	entries []logged
}

func (r *recorder) Log(raw timestamp.Raw, exp, device, sensor string, value float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logged{raw, exp, device, sensor, value})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type stubSensor struct {
	name     string
	readings []sensor.Reading
	err      error
}

func (s stubSensor) Name() string { return s.name }
func (s stubSensor) Read(context.Context) ([]sensor.Reading, error) {
	return s.readings, s.err
}

type counterClock struct{ n uint64 }

func (c *counterClock) Now() timestamp.Raw {
	c.n++
	return timestamp.Raw{Ticks: c.n}
}

func TestTick_LogsEveryReading(t *testing.T) {
	rec := &recorder{}
	sensors := []sensor.Sensor{
		stubSensor{name: "tempC", readings: []sensor.Reading{{Sensor: "tempC", Value: 21.5}}},
		stubSensor{name: "broken", err: errors.New("i2c timeout")},
		stubSensor{name: "humidity", readings: []sensor.Reading{{Sensor: "humidity", Value: 55}}},
	}
	s := New(sensors, rec, &counterClock{}, "exp1", "dev1", time.Second)

	if n := s.Tick(context.Background()); n != 2 {
		t.Fatalf("Tick() = %d, want 2", n)
	}
	if rec.entries[0].sensor != "tempC" || rec.entries[1].sensor != "humidity" {
		t.Errorf("logged sensors = %+v", rec.entries)
	}
	for _, e := range rec.entries {
		if e.exp != "exp1" || e.device != "dev1" {
			t.Errorf("entry identity = %+v", e)
		}
	}
	if rec.entries[0].raw.Ticks != 1 || rec.entries[1].raw.Ticks != 2 {
		t.Errorf("each reading should be stamped separately: %+v", rec.entries)
	}
}

func TestRun_SamplesImmediatelyAndStops(t *testing.T) {
	rec := &recorder{}
	sensors := []sensor.Sensor{stubSensor{name: "a", readings: []sensor.Reading{{Sensor: "a", Value: 1}}}}
	s := New(sensors, rec, &counterClock{}, "exp1", "dev1", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && rec.count() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("logged %d readings, want 1 immediate sample", rec.count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

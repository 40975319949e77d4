package store

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sensorlog/sensorlog/pkg/types"
)

// Reading is one stored measurement.
type Reading struct {
	ExperimentID string
	Timestamp    string
	Value        float32 // NaN when the agent sent null
	ReceivedAt   time.Time

	// Instance and Seq identify the delivery: the agent process that sent
	// the reading and its sequence number within that process. Either may
	// be empty when the sender did not provide it.
	Instance string
	Seq      uint64
}

// Series is a point-in-time copy of one device/sensor series.
type Series struct {
	Device     string
	Sensor     string
	Latest     Reading
	History    []Reading // oldest first
	Readings   uint64
	Duplicates uint64
	NonFinite  uint64
	FirstSeen  time.Time
	UpdatedAt  time.Time
}

// Totals are counters summed over every live series.
type Totals struct {
	Series     int
	Readings   uint64
	Duplicates uint64
	NonFinite  uint64
}

type series struct {
	device, sensor string

	ring []Reading
	next int // slot the next reading goes into
	n    int // filled slots

	readings, duplicates, nonFinite uint64
	firstSeen, updatedAt            time.Time
}

func (s *series) push(r Reading) {
	s.ring[s.next] = r
	s.next = (s.next + 1) % len(s.ring)
	if s.n < len(s.ring) {
		s.n++
	}
}

func (s *series) latest() Reading {
	return s.ring[(s.next-1+len(s.ring))%len(s.ring)]
}

// contains reports whether the history already holds the reading numbered
// seq by instance. Readings without both parts of the identity never match:
// equal timestamps and values say nothing about whether a reading was resent.
func (s *series) contains(instance string, seq uint64) bool {
	if instance == "" || seq == 0 {
		return false
	}
	for i := 0; i < s.n; i++ {
		r := s.ring[i]
		if r.Seq == seq && r.Instance == instance {
			return true
		}
	}
	return false
}

func (s *series) snapshot() Series {
	out := Series{
		Device:     s.device,
		Sensor:     s.sensor,
		Readings:   s.readings,
		Duplicates: s.duplicates,
		NonFinite:  s.nonFinite,
		FirstSeen:  s.firstSeen,
		UpdatedAt:  s.updatedAt,
		History:    make([]Reading, 0, s.n),
	}
	start := 0
	if s.n == len(s.ring) {
		start = s.next
	}
	for i := 0; i < s.n; i++ {
		out.History = append(out.History, s.ring[(start+i)%len(s.ring)])
	}
	if s.n > 0 {
		out.Latest = s.latest()
	}
	return out
}

// Store is a thread-safe series store.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*series
	ttl     time.Duration
	history int
	now     func() time.Time
}

// New creates a Store that evicts series idle for ttl and keeps history
// readings per series.
func New(ttl time.Duration, history int) *Store {
	if history < 1 {
		history = 1
	}
	return &Store{
		data:    make(map[string]*series),
		ttl:     ttl,
		history: history,
		now:     time.Now,
	}
}

// TTL returns the idle time after which a series is considered stale.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put records e as delivered by the agent process instance. It returns false
// when the same instance already delivered e.Seq and that reading is still in
// the series history; the duplicate is counted but not stored. An empty
// instance or a zero Seq disables the check and e is always stored.
func (s *Store) Put(instance string, e types.Entry) bool {
	now := s.now()
	key := e.SeriesKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.data[key]
	if !ok {
		sr = &series{
			device:    e.DeviceName,
			sensor:    e.SensorName,
			ring:      make([]Reading, s.history),
			firstSeen: now,
		}
		s.data[key] = sr
	}
	// A redelivery still proves the device is alive.
	sr.updatedAt = now

	if sr.contains(instance, e.Seq) {
		sr.duplicates++
		return false
	}
	sr.push(Reading{
		ExperimentID: e.ExperimentID,
		Timestamp:    e.Timestamp,
		Value:        e.Value,
		ReceivedAt:   now,
		Instance:     instance,
		Seq:          e.Seq,
	})
	sr.readings++
	if v := float64(e.Value); math.IsNaN(v) || math.IsInf(v, 0) {
		sr.nonFinite++
	}
	return true
}

// Get returns the series for device/sensor, stale or not.
func (s *Store) Get(device, sensor string) (Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.data[types.Entry{DeviceName: device, SensorName: sensor}.SeriesKey()]
	if !ok {
		return Series{}, false
	}
	return sr.snapshot(), true
}

// List returns every series updated within the TTL, sorted by device then
// sensor.
func (s *Store) List() []Series {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]Series, 0, len(s.data))
	for _, sr := range s.data {
		if sr.updatedAt.After(cutoff) {
			out = append(out, sr.snapshot())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Device != out[j].Device {
			return out[i].Device < out[j].Device
		}
		return out[i].Sensor < out[j].Sensor
	})
	return out
}

// Totals sums the counters of every live series.
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	var t Totals
	for _, sr := range s.data {
		if !sr.updatedAt.After(cutoff) {
			continue
		}
		t.Series++
		t.Readings += sr.readings
		t.Duplicates += sr.duplicates
		t.NonFinite += sr.nonFinite
	}
	return t
}

// Count returns the number of series held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes series not updated since now minus TTL and returns how many
// were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for key, sr := range s.data {
		if !sr.updatedAt.After(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Run evicts stale series every half TTL (at least once a second) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted idle series", "count", n)
			}
		}
	}
}

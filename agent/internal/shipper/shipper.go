package shipper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/buffer"
	"github.com/sensorlog/sensorlog/agent/internal/timestamp"
	"github.com/sensorlog/sensorlog/pkg/types"
)

const (
	// DefaultFlushInterval is used by Run when Config.FlushInterval is zero.
	DefaultFlushInterval = 30 * time.Second

	// finalFlushTimeout bounds the best-effort flush Run performs on shutdown.
	finalFlushTimeout = 5 * time.Second

	contentTypeJSON = "application/json"
)

// ErrNoTransport is returned by New when Config.Transport is nil.
var ErrNoTransport = errors.New("shipper: transport is required")

// Transport delivers one serialized batch.
//
// dispatched reports whether the request reached the collector and produced
// a response. It says nothing about whether the collector accepted the
// content. diagnostic is free text for the log and may be non-empty on
// success (e.g. an HTTP error status under the permissive contract).
type Transport interface {
	Post(ctx context.Context, url, contentType string, body []byte) (dispatched bool, diagnostic string)
}

// Serializer turns a batch into a transport payload.
type Serializer interface {
	ContentType() string
	Serialize(entries []types.Entry) ([]byte, error)
}

// LinkCheck reports whether the network link is up.
type LinkCheck func(ctx context.Context) bool

// Config wires a Shipper to its collaborators.
type Config struct {
	// Endpoint is the collector URL every batch is posted to.
	Endpoint string

	// Timestamp selects how Log renders the raw time it is given.
	Timestamp timestamp.Kind

	// Serializer defaults to a JSONSerializer using the "timestamp" field.
	Serializer Serializer

	// Transport is required.
	Transport Transport

	// FlushInterval is the Run loop period. Defaults to DefaultFlushInterval.
	FlushInterval time.Duration

	// Connected gates the Run loop. Nil means always connected. Flush itself
	// never consults it.
	Connected LinkCheck
}

// Stats is a point-in-time view of the shipper's counters.
type Stats struct {
	Logged        uint64
	Flushes       uint64
	FlushFailures uint64
	Delivered     uint64
	Restored      uint64
	Cleared       uint64
	Buffered      int
	LastSuccess   time.Time
}

// Shipper buffers entries and ships them to the collector in batches.
//
// Log is safe to call from any goroutine and only ever blocks on the buffer
// lock. Flush performs the network round trip and blocks for its duration.
// Concurrent Flush calls are serialized so a failed batch is always restored
// ahead of entries delivered by a later flush.
//
// Delivery is at-least-once: a batch the collector received but whose
// response was lost is restored and sent again.
type Shipper struct {
	endpoint  string
	kind      timestamp.Kind
	buf       *buffer.Buffer
	ser       Serializer
	tr        Transport
	interval  time.Duration
	connected LinkCheck

	flushMu sync.Mutex

	seq         atomic.Uint64 // last sequence number handed out by Log
	logged      atomic.Uint64
	flushes     atomic.Uint64
	failures    atomic.Uint64
	delivered   atomic.Uint64
	restored    atomic.Uint64
	cleared     atomic.Uint64
	lastSuccess atomic.Int64 // unix nanos
}

// New returns a Shipper with an empty buffer.
func New(cfg Config) (*Shipper, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	s := &Shipper{
		endpoint:  cfg.Endpoint,
		kind:      cfg.Timestamp,
		buf:       buffer.New(),
		ser:       cfg.Serializer,
		tr:        cfg.Transport,
		interval:  cfg.FlushInterval,
		connected: cfg.Connected,
	}
	if s.ser == nil {
		s.ser = NewJSONSerializer(FieldTimestamp)
	}
	if s.interval <= 0 {
		s.interval = DefaultFlushInterval
	}
	return s, nil
}

// Log records one measurement. The timestamp is rendered from raw now, using
// the format chosen at construction, and never changes afterwards. Each entry
// is numbered from a per-Shipper counter starting at 1; a restored entry keeps
// its number, so the collector can tell a redelivery from a new reading.
func (s *Shipper) Log(raw timestamp.Raw, experimentID, deviceName, sensorName string, value float32) {
	s.buf.Append(types.Entry{
		ExperimentID: experimentID,
		DeviceName:   deviceName,
		SensorName:   sensorName,
		Value:        value,
		Timestamp:    s.kind.Format(raw),
		Seq:          s.seq.Add(1),
	})
	s.logged.Add(1)
}

// Flush ships everything buffered so far as one batch.
//
// It returns true when the buffer was empty or the transport dispatched the
// batch. On a serialization or transport failure the batch is put back at
// the front of the buffer, ahead of anything logged meanwhile, and Flush
// returns false. Callers retry by calling Flush again later.
func (s *Shipper) Flush(ctx context.Context) bool {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	batch := s.buf.DrainAll()
	if len(batch) == 0 {
		return true
	}
	s.flushes.Add(1)

	payload, err := s.ser.Serialize(batch)
	if err != nil {
		s.restore(batch)
		slog.Error("shipper: serialize batch failed, batch restored",
			"entries", len(batch), "err", err)
		return false
	}

	dispatched, diag := s.tr.Post(ctx, s.endpoint, s.ser.ContentType(), payload)
	if !dispatched {
		s.restore(batch)
		slog.Warn("shipper: send failed, batch restored",
			"endpoint", s.endpoint,
			"entries", len(batch),
			"diagnostic", diag)
		return false
	}

	s.delivered.Add(uint64(len(batch)))
	s.lastSuccess.Store(time.Now().UnixNano())
	if diag != "" {
		slog.Warn("shipper: batch dispatched with diagnostic",
			"endpoint", s.endpoint, "entries", len(batch), "diagnostic", diag)
	} else {
		slog.Debug("shipper: batch delivered",
			"entries", len(batch), "bytes", len(payload))
	}
	return true
}

func (s *Shipper) restore(batch []types.Entry) {
	s.buf.RestoreFront(batch)
	s.failures.Add(1)
	s.restored.Add(uint64(len(batch)))
}

// ClearBuffer discards every buffered entry without sending it and returns
// how many were dropped.
func (s *Shipper) ClearBuffer() int {
	n := s.buf.Clear()
	s.cleared.Add(uint64(n))
	if n > 0 {
		slog.Warn("shipper: buffer cleared", "discarded", n)
	}
	return n
}

// Buffered returns the number of entries awaiting delivery.
func (s *Shipper) Buffered() int {
	return s.buf.Len()
}

// Stats returns a snapshot of the shipper's counters.
func (s *Shipper) Stats() Stats {
	st := Stats{
		Logged:        s.logged.Load(),
		Flushes:       s.flushes.Load(),
		FlushFailures: s.failures.Load(),
		Delivered:     s.delivered.Load(),
		Restored:      s.restored.Load(),
		Cleared:       s.cleared.Load(),
		Buffered:      s.buf.Len(),
	}
	if ns := s.lastSuccess.Load(); ns != 0 {
		st.LastSuccess = time.Unix(0, ns)
	}
	return st
}

// Run flushes every FlushInterval until ctx is cancelled, skipping ticks while
// the link check reports the network down. On cancellation it makes one final
// best-effort flush bounded by a short timeout.
func (s *Shipper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finalFlush()
			return
		case <-t.C:
			if s.connected != nil && !s.connected(ctx) {
				slog.Debug("shipper: link down, skipping flush",
					"buffered", s.buf.Len())
				continue
			}
			s.Flush(ctx)
		}
	}
}

func (s *Shipper) finalFlush() {
	if s.buf.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	if !s.Flush(ctx) {
		slog.Warn("shipper: final flush failed, entries lost on exit",
			"buffered", s.buf.Len())
	}
}

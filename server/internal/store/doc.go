// Package store holds the collector's in-memory view of every series it has
// received, keyed by device and sensor.
//
// Each series keeps its latest reading, a bounded ring of recent readings and
// running counters. Agents deliver at-least-once, so redelivered batches are
// expected. A reading whose agent instance ID and sequence number match one
// already in the ring is counted as a duplicate and not stored. Readings that
// carry no such identity are always stored, even when their timestamp and
// value repeat.
// Series that receive nothing for the configured TTL are evicted by Run.
package store

// Package types defines shared Go types used by both the agent and the collector.
// These are the canonical in-memory representations of a logged measurement,
// separate from the JSON wire format the shipper produces.
package types

package buffer

import (
	"sync"

	"github.com/sensorlog/sensorlog/pkg/types"
)

// Buffer is an ordered queue of entries awaiting delivery.
// Insertion order is chronological logging order and is preserved across
// drain/restore cycles.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []types.Entry
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds e to the back of the buffer.
func (b *Buffer) Append(e types.Entry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
}

// DrainAll removes and returns the entire contents in order. It returns nil
// when the buffer is empty.
//
// The returned slice is owned by the caller: the buffer starts a fresh backing
// array, so later appends never alias the drained batch.
func (b *Buffer) DrainAll() []types.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil
	}
	out := b.entries
	b.entries = nil
	return out
}

// RestoreFront puts batch back at the front of the buffer, ahead of entries
// appended after it was drained. Used after a failed send.
func (b *Buffer) RestoreFront(batch []types.Entry) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		b.entries = batch
		return
	}
	merged := make([]types.Entry, 0, len(batch)+len(b.entries))
	merged = append(merged, batch...)
	merged = append(merged, b.entries...)
	b.entries = merged
}

// Clear discards the entire contents and returns how many entries were dropped.
// Unlike a failed flush, nothing is ever restored.
func (b *Buffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = nil
	return n
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

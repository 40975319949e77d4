// Package buffer holds the agent's pending measurements between flushes.
//
// Buffer is a mutex-guarded, insertion-ordered slice of types.Entry with four
// operations sharing one critical section:
//   - Append       - push one entry to the back
//   - DrainAll     - take the whole contents, leaving the buffer empty
//   - RestoreFront - put a drained batch back ahead of anything appended since
//   - Clear        - discard everything (operator-triggered)
//
// Critical sections only move slices around; no I/O happens under the lock.
// sync.Mutex acquisition cannot fail, so Append never drops an entry.
package buffer

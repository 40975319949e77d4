// Package timestamp turns raw time readings into the canonical text stored on
// every logged entry.
//
// Three formats are supported, selected once at construction (Kind):
//   - Monotonic      - tick count since boot, rendered as a decimal string
//   - CalendarSeconds - "YYYY-MM-DD HH:MM:SS"
//   - CalendarMillis  - "YYYY-MM-DD HH:MM:SS.mmm"
//
// Formatting is pure. Clock is the only stateful type: it acquires a Raw from
// the process clock so the agent binary has something to hand to Format.
package timestamp

package timestamp

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownKind is returned by ParseKind for an unrecognised format name.
var ErrUnknownKind = errors.New("timestamp: unknown format")

// Kind selects one of the fixed timestamp formats.
type Kind int

const (
	// Monotonic formats Raw.Ticks as a decimal string. Values only increase
	// while uptime continues; they carry no calendar meaning.
	Monotonic Kind = iota

	// CalendarSeconds formats Raw.Calendar as "YYYY-MM-DD HH:MM:SS".
	CalendarSeconds

	// CalendarMillis formats Raw.Calendar plus Raw.Millis as
	// "YYYY-MM-DD HH:MM:SS.mmm".
	CalendarMillis
)

// Config names accepted by ParseKind.
const (
	NameMonotonic       = "monotonic"
	NameCalendarSeconds = "calendar"
	NameCalendarMillis  = "calendar_ms"
)

// Calendar is a broken-down calendar time. Month is 1-12.
type Calendar struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Raw carries every raw representation a format may consume. Only the fields
// relevant to the selected Kind are read.
type Raw struct {
	Ticks    uint64
	Calendar Calendar
	Millis   int
}

// ParseKind maps a config name to its Kind. The empty string selects
// CalendarMillis.
func ParseKind(name string) (Kind, error) {
	switch name {
	case NameMonotonic:
		return Monotonic, nil
	case NameCalendarSeconds:
		return CalendarSeconds, nil
	case NameCalendarMillis, "":
		return CalendarMillis, nil
	default:
		return 0, fmt.Errorf("%w %q: want %s|%s|%s", ErrUnknownKind, name,
			NameMonotonic, NameCalendarSeconds, NameCalendarMillis)
	}
}

// String returns the config name of k.
func (k Kind) String() string {
	switch k {
	case Monotonic:
		return NameMonotonic
	case CalendarSeconds:
		return NameCalendarSeconds
	case CalendarMillis:
		return NameCalendarMillis
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Format renders r using the format selected by k. An unknown Kind falls back
// to CalendarMillis.
func (k Kind) Format(r Raw) string {
	switch k {
	case Monotonic:
		return FormatTicks(r.Ticks)
	case CalendarSeconds:
		return FormatCalendar(r.Calendar)
	default:
		return FormatCalendarMillis(r.Calendar, r.Millis)
	}
}

// FormatTicks renders a tick count as its decimal string.
func FormatTicks(ticks uint64) string {
	return strconv.FormatUint(ticks, 10)
}

// FormatCalendar renders c as "YYYY-MM-DD HH:MM:SS".
func FormatCalendar(c Calendar) string {
	b := make([]byte, 0, len("2006-01-02 15:04:05"))
	return string(appendCalendar(b, c))
}

// FormatCalendarMillis renders c and ms as "YYYY-MM-DD HH:MM:SS.mmm".
// ms is clamped to [0, 999].
func FormatCalendarMillis(c Calendar, ms int) string {
	switch {
	case ms < 0:
		ms = 0
	case ms > 999:
		ms = 999
	}
	b := make([]byte, 0, len("2006-01-02 15:04:05.000"))
	b = appendCalendar(b, c)
	b = append(b, '.')
	return string(appendPadded(b, ms, 3))
}

func appendCalendar(b []byte, c Calendar) []byte {
	b = appendPadded(b, c.Year, 4)
	b = append(b, '-')
	b = appendPadded(b, c.Month, 2)
	b = append(b, '-')
	b = appendPadded(b, c.Day, 2)
	b = append(b, ' ')
	b = appendPadded(b, c.Hour, 2)
	b = append(b, ':')
	b = appendPadded(b, c.Minute, 2)
	b = append(b, ':')
	return appendPadded(b, c.Second, 2)
}

// appendPadded appends v zero-padded to at least width digits. Negative
// values keep their sign ahead of the padding.
func appendPadded(b []byte, v, width int) []byte {
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		b = append(b, '0')
	}
	return append(b, s...)
}

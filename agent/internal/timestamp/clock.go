package timestamp

import "time"

// Clock produces Raw readings from the process clock.
//
// Ticks are milliseconds elapsed since the Clock was created, measured on the
// monotonic clock. Calendar fields come from wall time in the configured
// location.
type Clock struct {
	loc   *time.Location
	start time.Time
	now   func() time.Time // injectable for deterministic tests
}

// NewClock returns a Clock reporting calendar fields in loc. A nil loc means UTC.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, start: time.Now(), now: time.Now}
}

// Now returns the current time in every raw representation.
func (c *Clock) Now() Raw {
	t := c.now()
	r := FromTime(t.In(c.loc))
	if elapsed := t.Sub(c.start); elapsed > 0 {
		r.Ticks = uint64(elapsed / time.Millisecond)
	}
	return r
}

// FromTime breaks t down into calendar fields and milliseconds. Ticks are left
// at zero because a wall-clock instant says nothing about uptime.
func FromTime(t time.Time) Raw {
	return Raw{
		Calendar: Calendar{
			Year:   t.Year(),
			Month:  int(t.Month()),
			Day:    t.Day(),
			Hour:   t.Hour(),
			Minute: t.Minute(),
			Second: t.Second(),
		},
		Millis: t.Nanosecond() / int(time.Millisecond),
	}
}

package core

import (
	"sync"
	"time"
)

// Clock supplies the current instant and the business "today".
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// BusinessClock resolves "today" in the business time zone. When a server
// offset is known (device clock drift measured at the last sync) it is added
// to the device time before the date is taken.
type BusinessClock struct {
	loc *time.Location
	now func() time.Time

	mu     sync.RWMutex
	offset time.Duration
}

func NewBusinessClock(loc *time.Location) *BusinessClock {
	if loc == nil {
		loc = time.UTC
	}
	return &BusinessClock{loc: loc, now: time.Now}
}

// NewFixedClock returns a clock frozen at t, used by tests and tools.
func NewFixedClock(t time.Time, loc *time.Location) *BusinessClock {
	c := NewBusinessClock(loc)
	c.now = func() time.Time { return t }
	return c
}

// SetServerOffset records the difference between server time and device time.
func (c *BusinessClock) SetServerOffset(d time.Duration) {
	c.mu.Lock()
	c.offset = d
	c.mu.Unlock()
}

func (c *BusinessClock) Now() time.Time {
	c.mu.RLock()
	off := c.offset
	c.mu.RUnlock()
	return c.now().Add(off).In(c.loc)
}

func (c *BusinessClock) Today() time.Time {
	return DateOf(c.Now())
}

func (c *BusinessClock) Location() *time.Location { return c.loc }

// DateOf truncates t to its calendar date (in t's own location) and returns it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// Package ratelimit throttles repetitive log lines, such as a fetch failing
// every few seconds while the logger is closed.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Counter counts occurrences of one condition and allows a log line at most
// once per interval. The zero value never throttles. Safe for concurrent use.
type Counter struct {
	interval time.Duration
	lastLog  atomic.Int64
	total    atomic.Uint64
	streak   atomic.Uint64
}

// NewCounter returns a Counter that permits one log per interval.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc records an occurrence. It returns the length of the current streak
// (occurrences since the last Reset) and whether the caller should log now.
func (c *Counter) Inc() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	c.total.Add(1)
	streak := c.streak.Add(1)
	if c.interval <= 0 || streak == 1 {
		c.lastLog.Store(time.Now().UnixNano())
		return streak, true
	}
	now := time.Now().UnixNano()
	last := c.lastLog.Load()
	if now-last < c.interval.Nanoseconds() {
		return streak, false
	}
	if c.lastLog.CompareAndSwap(last, now) {
		return streak, true
	}
	return streak, false
}

// Reset ends the current streak and reports how long it was, so a recovery
// can be logged once. The lifetime total is kept.
func (c *Counter) Reset() uint64 {
	if c == nil {
		return 0
	}
	return c.streak.Swap(0)
}

// Total returns every occurrence since the Counter was created.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Package dates formats post timestamps for templates.
package dates

import (
	"sync"
	"time"
)

const (
	// DateLayout renders "Mar 1, 2024".
	DateLayout = "Jan 2, 2006"
	// ClockLayout renders "Mar 1, 14:05".
	ClockLayout = "Jan 2, 15:04"
)

type memoKey struct {
	unix   int64
	nsec   int
	layout string
}

// Formatter formats times in a fixed location and memoises the results.
type Formatter struct {
	loc *time.Location
	now func() time.Time

	mu   sync.Mutex
	memo map[memoKey]string
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLocation sets the display time zone. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithClock overrides the wall clock used by Now.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// New creates a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{loc: time.UTC, now: time.Now, memo: make(map[memoKey]string)}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Format renders t with layout.
func (f *Formatter) Format(t time.Time, layout string) string {
	k := memoKey{unix: t.Unix(), nsec: t.Nanosecond(), layout: layout}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.memo[k]; ok {
		return s
	}
	s := t.In(f.loc).Format(layout)
	f.memo[k] = s
	return s
}

// Now renders the current time with layout.
func (f *Formatter) Now(layout string) string {
	return f.now().In(f.loc).Format(layout)
}

// Clock returns the current time.
func (f *Formatter) Clock() time.Time {
	return f.now()
}

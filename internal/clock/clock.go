// Package clock abstracts wall-clock reads and periodic tickers so the study
// timer can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// DayLayout is the calendar-day key stored on StudySession.Date.
const DayLayout = "2006-01-02"

// Clock is the engine's time source.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System returns a Clock backed by the time package.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// DayKey returns the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// ParseDay parses a day key as midnight in loc.
func ParseDay(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DayLayout, key, loc)
}

// WeekWindow is the trailing 7×24h span ending at now.
const WeekWindow = 7 * 24 * time.Hour

// InTrailingWeek reports whether the day key falls within the trailing week
// ending at now. The day counts when its midnight is no earlier than
// now - WeekWindow. Unparseable keys never count.
func InTrailingWeek(key string, now time.Time, loc *time.Location) bool {
	day, err := ParseDay(key, loc)
	if err != nil {
		return false
	}
	return !day.Before(now.Add(-WeekWindow))
}

// Fake is a manually driven Clock. Tickers created from it fire only when
// Advance crosses their next deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a Fake clock starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t without firing tickers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// NewTicker registers a ticker that fires on Advance.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		c:      make(chan time.Time, 1),
		period: d,
		next:   f.now.Add(d),
		owner:  f,
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves time forward by d and fires each live ticker once for every
// period crossed. A ticker whose buffered tick has not been consumed drops
// the extra ticks, the same as time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	live := make([]*fakeTicker, len(f.tickers))
	copy(live, f.tickers)
	f.mu.Unlock()

	for _, t := range live {
		for !t.next.After(now) {
			t.fire(t.next)
			t.next = t.next.Add(t.period)
		}
	}
}

// Tickers returns the number of tickers that have not been stopped.
func (f *Fake) Tickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *Fake) remove(t *fakeTicker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.tickers {
		if c == t {
			f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
			return
		}
	}
}

type fakeTicker struct {
	c      chan time.Time
	period time.Duration
	next   time.Time
	owner  *Fake
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() { t.owner.remove(t) }

func (t *fakeTicker) fire(at time.Time) {
	select {
	case t.c <- at:
	default:
	}
}

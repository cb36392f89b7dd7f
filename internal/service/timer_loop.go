package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
)

// ErrTimerStopped is returned by TimerLoop calls made after Close.
var ErrTimerStopped = errors.New("study timer stopped")

// TimerLoop runs a StudyTimer on its own goroutine. Ticks, focus changes,
// page turns and reads are all processed one at a time by that goroutine,
// and the ticker is stopped there before a focus loss or teardown touches
// the timer's state.
type TimerLoop struct {
	timer    *StudyTimer
	clock    clock.Clock
	interval time.Duration
	events   store.EventEmitter
	logger   *slog.Logger

	// ctx is used for storage calls made by ticks; it outlives requests.
	ctx    context.Context
	ticker clock.Ticker

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// StartTimerLoop opens the timer and starts ticking every interval.
func StartTimerLoop(ctx context.Context, timer *StudyTimer, clk clock.Clock, interval time.Duration, events store.EventEmitter, logger *slog.Logger) *TimerLoop {
	l := &TimerLoop{
		timer:    timer,
		clock:    clk,
		interval: interval,
		events:   events,
		logger:   logger,
		ctx:      context.WithoutCancel(ctx),
		cmds:     make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	timer.Open(ctx)
	l.startTicker()
	l.events.Emit(sse.NewStudyStatsEvent(timer.Snapshot()))

	go l.run()
	return l
}

func (l *TimerLoop) run() {
	defer close(l.done)
	for {
		var tick <-chan time.Time
		if l.ticker != nil {
			tick = l.ticker.C()
		}

		select {
		case cmd := <-l.cmds:
			cmd()
		case <-tick:
			if l.timer.Tick(l.ctx) {
				l.events.Emit(sse.NewStudyStatsEvent(l.timer.Snapshot()))
			}
		case <-l.quit:
			l.stopTicker()
			l.logger.Debug("study timer loop stopped", "book_id", l.timer.BookID())
			return
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *TimerLoop) Do(ctx context.Context, fn func(t *StudyTimer)) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn(l.timer)
	}

	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrTimerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the command always runs; wait for it even if ctx ends
	// so callers never observe a half-applied change.
	<-finished
	return nil
}

// FocusLost cancels the tick and writes the session.
func (l *TimerLoop) FocusLost(ctx context.Context) error {
	return l.Do(ctx, func(t *StudyTimer) {
		l.stopTicker()
		t.FocusLost(l.ctx)
		l.events.Emit(sse.NewStudyStatsEvent(t.Snapshot()))
	})
}

// FocusGained restarts the tick. The first credited second is one full
// interval after this call.
func (l *TimerLoop) FocusGained(ctx context.Context) error {
	return l.Do(ctx, func(t *StudyTimer) {
		t.FocusGained()
		l.startTicker()
		l.events.Emit(sse.NewStudyStatsEvent(t.Snapshot()))
	})
}

// IncrementPages counts a page turn.
func (l *TimerLoop) IncrementPages(ctx context.Context) error {
	return l.Do(ctx, func(t *StudyTimer) {
		t.IncrementPages(l.ctx)
		l.events.Emit(sse.NewStudyStatsEvent(t.Snapshot()))
	})
}

// Stats returns the timer's current snapshot.
func (l *TimerLoop) Stats(ctx context.Context) (domain.StudySnapshot, error) {
	var snap domain.StudySnapshot
	err := l.Do(ctx, func(t *StudyTimer) {
		snap = t.Snapshot()
	})
	return snap, err
}

// Close cancels the tick, tears the session down and stops the loop. It
// reports the history entry written, if any. Calling Close again is a no-op.
func (l *TimerLoop) Close(ctx context.Context) (domain.StudySession, bool, error) {
	var closed domain.StudySession
	var ok bool
	var err error
	l.closeOnce.Do(func() {
		err = l.Do(ctx, func(t *StudyTimer) {
			l.stopTicker()
			closed, ok = t.Teardown(l.ctx)
		})
		close(l.quit)
		<-l.done
	})
	if err != nil {
		return domain.StudySession{}, false, err
	}
	if ok {
		l.events.Emit(sse.NewStudySessionClosedEvent(l.timer.BookID(), closed))
	}
	return closed, ok, nil
}

// startTicker and stopTicker are only called on the loop goroutine, or
// before it starts.
func (l *TimerLoop) startTicker() {
	if l.ticker != nil {
		return
	}
	l.ticker = l.clock.NewTicker(l.interval)
}

func (l *TimerLoop) stopTicker() {
	if l.ticker == nil {
		return
	}
	l.ticker.Stop()
	l.ticker = nil
}

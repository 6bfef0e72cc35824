// Package power holds the duty-cycle timing of the sampling loop: the named
// sleep intervals a measurement cycle is built from, the sleeper that waits
// them out, and the periodic wake source that paces the loop.
package power

import (
	"context"
	"fmt"
	"time"
)

// Interval names one of the fixed sleeps of a wake cycle.
type Interval uint8

const (
	// IntervalDischarge grounds the sense line before a measurement.
	IntervalDischarge Interval = iota
	// IntervalCapture gates the oscillator edge count.
	IntervalCapture
	// IntervalIdle is the low-power slack between cycles.
	IntervalIdle
)

func (i Interval) String() string {
	switch i {
	case IntervalDischarge:
		return "discharge"
	case IntervalCapture:
		return "capture"
	case IntervalIdle:
		return "idle"
	}
	return fmt.Sprintf("interval(%d)", uint8(i))
}

// Intervals maps each named interval to its duration.
type Intervals struct {
	Discharge time.Duration
	Capture   time.Duration
	Idle      time.Duration
}

// DefaultIntervals returns the 32+32+5 ms cycle the lamp was tuned with.
func DefaultIntervals() Intervals {
	return Intervals{
		Discharge: 32 * time.Millisecond,
		Capture:   32 * time.Millisecond,
		Idle:      5 * time.Millisecond,
	}
}

// Duration returns the length of the named interval.
func (iv Intervals) Duration(i Interval) time.Duration {
	switch i {
	case IntervalDischarge:
		return iv.Discharge
	case IntervalCapture:
		return iv.Capture
	case IntervalIdle:
		return iv.Idle
	}
	return 0
}

// Tick returns the length of one full wake cycle.
func (iv Intervals) Tick() time.Duration {
	return iv.Discharge + iv.Capture + iv.Idle
}

// LoopsPerSecond returns whole wake cycles per second, at least 1.
// Cycles shorter than a millisecond count as one millisecond.
func (iv Intervals) LoopsPerSecond() uint32 {
	ms := iv.Tick().Milliseconds()
	if ms < 1 {
		ms = 1
	}
	lps := 1000 / ms
	if lps < 1 {
		return 1
	}
	return uint32(lps)
}

// Sleeper blocks for one of the named intervals.
type Sleeper interface {
	Sleep(Interval)
}

// TimerSleeper sleeps on the wall clock.
type TimerSleeper struct {
	Intervals Intervals
}

// Sleep blocks for the named interval. It is not cancellable; every interval
// is short and bounded.
func (s TimerSleeper) Sleep(i Interval) {
	time.Sleep(s.Intervals.Duration(i))
}

// Waker blocks until the next periodic wake.
type Waker interface {
	Wait(ctx context.Context) error
}

// TickerWaker wakes once per cycle. The underlying ticker holds at most one
// pending tick, so wakes missed while the loop overran coalesce into one.
type TickerWaker struct {
	t *time.Ticker
}

// NewTickerWaker starts a waker with the given period.
func NewTickerWaker(period time.Duration) *TickerWaker {
	return &TickerWaker{t: time.NewTicker(period)}
}

// C exposes the tick channel for select-based loops.
func (w *TickerWaker) C() <-chan time.Time {
	return w.t.C
}

// Wait blocks until the next tick or until ctx is done.
func (w *TickerWaker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.t.C:
		return nil
	}
}

// Stop releases the ticker.
func (w *TickerWaker) Stop() {
	w.t.Stop()
}

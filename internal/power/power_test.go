package power

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIntervals(t *testing.T) {
	iv := DefaultIntervals()
	assert.Equal(t, 69*time.Millisecond, iv.Tick())
	assert.Equal(t, uint32(14), iv.LoopsPerSecond())
	assert.Equal(t, 32*time.Millisecond, iv.Duration(IntervalDischarge))
	assert.Equal(t, 32*time.Millisecond, iv.Duration(IntervalCapture))
	assert.Equal(t, 5*time.Millisecond, iv.Duration(IntervalIdle))
	assert.Equal(t, time.Duration(0), iv.Duration(Interval(7)))
}

func TestLoopsPerSecond(t *testing.T) {
	tests := []struct {
		name string
		iv   Intervals
		want uint32
	}{
		{"100ms", Intervals{Idle: 100 * time.Millisecond}, 10},
		{"slower than a second", Intervals{Idle: 3 * time.Second}, 1},
		{"sub-millisecond", Intervals{Idle: 100 * time.Microsecond}, 1000},
		{"zero", Intervals{}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iv.LoopsPerSecond())
		})
	}
}

func TestIntervalString(t *testing.T) {
	assert.Equal(t, "discharge", IntervalDischarge.String())
	assert.Equal(t, "capture", IntervalCapture.String())
	assert.Equal(t, "idle", IntervalIdle.String())
	assert.Equal(t, "interval(9)", Interval(9).String())
}

func TestTimerSleeper(t *testing.T) {
	s := TimerSleeper{Intervals: Intervals{Idle: 5 * time.Millisecond}}
	start := time.Now()
	s.Sleep(IntervalIdle)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestFakeSleeper(t *testing.T) {
	f := &FakeSleeper{}
	f.Sleep(IntervalDischarge)
	f.Sleep(IntervalCapture)
	f.Sleep(IntervalDischarge)
	assert.Equal(t, 2, f.Count(IntervalDischarge))
	assert.Equal(t, 1, f.Count(IntervalCapture))
	assert.Equal(t, 0, f.Count(IntervalIdle))
	f.Reset()
	assert.Empty(t, f.Slept)
}

func TestChanWaker(t *testing.T) {
	c := make(chan struct{}, 1)
	w := ChanWaker{C: c}

	c <- struct{}{}
	require.NoError(t, w.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.Canceled)
}

func TestTickerWakerCoalescesMissedWakes(t *testing.T) {
	w := NewTickerWaker(20 * time.Millisecond)
	defer w.Stop()

	// Miss several periods; only one wake may be pending afterwards.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, w.Wait(context.Background()))

	select {
	case <-w.C():
		t.Fatal("missed wakes were queued instead of coalesced")
	default:
	}
}

func TestTickerWakerCancel(t *testing.T) {
	w := NewTickerWaker(time.Hour)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}

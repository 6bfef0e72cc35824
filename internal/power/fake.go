package power

import "context"

// FakeSleeper records requested intervals without sleeping.
type FakeSleeper struct {
	Slept []Interval
}

// Sleep records the interval.
func (f *FakeSleeper) Sleep(i Interval) {
	f.Slept = append(f.Slept, i)
}

// Count returns how many times the named interval was slept.
func (f *FakeSleeper) Count(i Interval) int {
	n := 0
	for _, s := range f.Slept {
		if s == i {
			n++
		}
	}
	return n
}

// Reset clears the record.
func (f *FakeSleeper) Reset() {
	f.Slept = nil
}

// ChanWaker wakes whenever a value arrives on C.
type ChanWaker struct {
	C <-chan struct{}
}

// Wait blocks until C delivers or ctx is done.
func (w ChanWaker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.C:
		return nil
	}
}

package logic

import "github.com/sweeney/touch-lamp/internal/fixed"

// SecondCounter converts scheduler ticks into whole elapsed seconds.
// The sub-second remainder carries across calls so long uptimes do not drift.
type SecondCounter struct {
	perSecond uint32
	ticks     uint32
	seconds   uint64
}

// NewSecondCounter creates a counter for the given number of ticks per second.
// Zero is treated as one.
func NewSecondCounter(loopsPerSecond uint32) SecondCounter {
	if loopsPerSecond == 0 {
		loopsPerSecond = 1
	}
	return SecondCounter{perSecond: loopsPerSecond}
}

// Advance counts one tick and returns how many whole seconds it completed.
func (s *SecondCounter) Advance() uint32 {
	s.ticks++
	q, r := fixed.DivMod(s.ticks, s.perSecond)
	s.ticks = r
	s.seconds += uint64(q)
	return q
}

// Seconds returns the whole seconds counted since the last Reset.
func (s *SecondCounter) Seconds() uint64 {
	return s.seconds
}

// Remainder returns the ticks counted towards the next whole second.
func (s *SecondCounter) Remainder() uint32 {
	return s.ticks
}

// Reset clears the count and the carried remainder.
func (s *SecondCounter) Reset() {
	s.ticks = 0
	s.seconds = 0
}

package gpio

// FakeSampler is a test double that returns scripted oscillator counts.
type FakeSampler struct {
	// Counts contains scripted raw counts to return.
	// Each call to Measure() consumes the next count.
	Counts []uint16

	// Pins records every pin measured, in order.
	Pins []int

	// index tracks current position in Counts
	index int
}

// NewFakeSampler creates a FakeSampler with the given counts.
func NewFakeSampler(counts []uint16) *FakeSampler {
	return &FakeSampler{Counts: counts}
}

// Measure returns the next scripted count.
// If counts are exhausted, returns the last count repeatedly; with no counts
// configured it reads 0, like a dead oscillator.
func (f *FakeSampler) Measure(pin int) uint16 {
	f.Pins = append(f.Pins, pin)
	if len(f.Counts) == 0 {
		return 0
	}

	c := f.Counts[f.index]
	if f.index < len(f.Counts)-1 {
		f.index++
	}
	return c
}

// Calls returns how many measurements were taken.
func (f *FakeSampler) Calls() int {
	return len(f.Pins)
}

// Reset rewinds the sampler to the first count.
func (f *FakeSampler) Reset() {
	f.index = 0
	f.Pins = nil
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	// Values holds every value passed to Set, in order.
	Values []bool

	// On is the current level.
	On bool

	// SetError, if set, will be returned by Set (the level is not changed).
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	f.On = on
	return nil
}

// Close turns the output off and marks it closed.
func (f *FakeOutput) Close() error {
	f.On = false
	f.Closed = true
	return nil
}

// Changes returns the number of times the level actually changed.
func (f *FakeOutput) Changes() int {
	n := 0
	prev := false
	for _, v := range f.Values {
		if v != prev {
			n++
		}
		prev = v
	}
	return n
}

package logic

import "github.com/sweeney/touch-lamp/internal/fixed"

// Detector tracks the untouched baseline of one sense line and turns raw
// oscillator counts into one-shot touch events.
//
// While starting up it fills a window of Samples readings and seeds the
// average from it. Once steady, readings whose distance from the average is
// under MaxDriftLevel are folded into the window so slow atmospheric drift is
// absorbed; larger distances freeze the baseline for that tick. A leaky
// integral accumulates derivatives above DerivativeThreshold and drains by
// Leakage otherwise; crossing IntegralThreshold reports a touch and empties it.
//
// A baseline that stays frozen for FreezeLimit ticks without producing a touch
// is rebased onto the current reading. Shifts that land between the drift
// bound and the touch threshold, or away from touch, would otherwise hold the
// stale average forever.
type Detector struct {
	p Params

	steady bool
	window [1 << maxSamplesShift]uint16
	index  int
	filled int
	total  uint32

	raw        uint16
	avg        uint16
	last       uint16
	derivative int32
	integral   int32
	frozen     bool
	frozenRun  uint32
	rebases    uint32
}

// NewDetector creates a detector in the startup phase.
func NewDetector(p Params) *Detector {
	d := &Detector{p: p}
	d.Reset()
	return d
}

// Reset discards all history and re-enters the startup phase.
func (d *Detector) Reset() {
	d.steady = false
	d.index = 0
	d.filled = 0
	d.total = 0
	d.derivative = 0
	d.integral = 0
	d.frozen = false
	d.frozenRun = 0
}

// Update processes one raw reading and reports whether a touch completed on
// this tick. It never reports a touch during startup.
func (d *Detector) Update(raw uint16) bool {
	d.raw = raw
	if !d.steady {
		d.seed(raw)
		return false
	}

	d.derivative = d.derive(raw)

	d.frozen = fixed.Abs(d.derivative) >= d.p.MaxDriftLevel
	if d.frozen {
		d.frozenRun++
	} else {
		d.frozenRun = 0
		d.fold(raw)
	}

	if d.derivative > d.p.DerivativeThreshold {
		d.integral = fixed.AddSat32(d.integral, d.derivative)
	} else {
		d.integral = fixed.DrainTo0(d.integral, d.p.Leakage)
	}

	if d.integral > d.p.IntegralThreshold {
		d.integral = 0
		d.frozenRun = 0
		return true
	}
	if d.p.FreezeLimit > 0 && d.frozenRun >= d.p.FreezeLimit {
		d.rebase(raw)
	}
	return false
}

func (d *Detector) seed(raw uint16) {
	d.window[d.filled] = raw
	d.total += uint32(raw)
	d.filled++
	if d.filled < d.p.Samples() {
		return
	}
	d.avg = fixed.Avg(d.total, d.p.SamplesShift)
	d.last = d.avg
	d.index = 0
	d.derivative = 0
	d.integral = 0
	d.steady = true
}

// fold replaces the oldest window entry with raw and recomputes the average.
func (d *Detector) fold(raw uint16) {
	d.total -= uint32(d.window[d.index])
	d.window[d.index] = raw
	d.total += uint32(raw)
	d.index = (d.index + 1) & (d.p.Samples() - 1)
	d.last = d.avg
	d.avg = fixed.Avg(d.total, d.p.SamplesShift)
}

// rebase fills the whole window with raw, accepting it as the new normal.
func (d *Detector) rebase(raw uint16) {
	n := d.p.Samples()
	for i := 0; i < n; i++ {
		d.window[i] = raw
	}
	d.total = uint32(raw) << d.p.SamplesShift
	d.index = 0
	d.last = d.avg
	d.avg = raw
	d.integral = 0
	d.frozenRun = 0
	d.rebases++
}

func (d *Detector) derive(raw uint16) int32 {
	if d.p.Polarity == PolarityRising {
		return int32(raw) - int32(d.avg)
	}
	return int32(d.avg) - int32(raw)
}

// IsSteady reports whether the startup window has been filled.
func (d *Detector) IsSteady() bool {
	return d.steady
}

// Avg returns the current baseline.
func (d *Detector) Avg() uint16 {
	return d.avg
}

// Integral returns the current leaky integral.
func (d *Detector) Integral() int32 {
	return d.integral
}

// State returns a copy of the working values.
func (d *Detector) State() DetectorState {
	return DetectorState{
		Steady:     d.steady,
		Raw:        d.raw,
		Avg:        d.avg,
		Last:       d.last,
		Derivative: d.derivative,
		Integral:   d.integral,
		Frozen:     d.frozen,
		FrozenRun:  d.frozenRun,
		Rebases:    d.rebases,
	}
}

// Package logic contains the pure touch-lamp pipeline: the drift-bounded
// baseline tracker, the leaky-integrator touch detector and the lamp state
// machine. This package does no I/O (no GPIO, MQTT, OS, or time.Sleep).
// Time is counted in scheduler ticks supplied by the caller.
package logic

import (
	"errors"
	"fmt"
)

// Phase is the lamp controller state.
type Phase uint8

const (
	PhaseReset Phase = iota
	PhaseIdle
	PhaseAction
)

func (p Phase) String() string {
	switch p {
	case PhaseReset:
		return "RESET"
	case PhaseIdle:
		return "IDLE"
	case PhaseAction:
		return "ACTION"
	}
	return fmt.Sprintf("PHASE(%d)", uint8(p))
}

// Polarity selects which direction of raw count change is a touch.
// The derivative is always oriented so that positive means "towards touch".
type Polarity uint8

const (
	// PolarityFalling: added capacitance slows the oscillator, so a touch
	// lowers the count. derivative = avg - raw.
	PolarityFalling Polarity = iota
	// PolarityRising: a touch raises the count. derivative = raw - avg.
	PolarityRising
)

func (p Polarity) String() string {
	if p == PolarityRising {
		return "rising"
	}
	return "falling"
}

// Detector tuning defaults. All values are raw oscillator counts.
const (
	DefaultSamplesShift        = 4 // window of 16 samples
	DefaultDerivativeThreshold = 0x300
	DefaultIntegralThreshold   = DefaultDerivativeThreshold * 4
	DefaultLeakage             = DefaultDerivativeThreshold / 4
	DefaultMaxDriftLevel       = DefaultDerivativeThreshold / 2

	// DefaultFreezeSeconds is how long the baseline may stay frozen without
	// a touch before it is rebased.
	DefaultFreezeSeconds = 3

	// DefaultAutoOffSeconds turns the lamp off after 20 minutes. 0 disables.
	DefaultAutoOffSeconds = 20 * 60

	// DefaultLoopsPerSecond matches a 69 ms wake cycle (32+32+5 ms).
	DefaultLoopsPerSecond = 1000 / (32 + 32 + 5)

	maxSamplesShift = 8
)

// Params holds the compiled-in detector and controller tuning.
type Params struct {
	SamplesShift        uint8
	DerivativeThreshold int32
	IntegralThreshold   int32
	Leakage             int32
	MaxDriftLevel       int32
	Polarity            Polarity

	AutoOffSeconds uint16
	LoopsPerSecond uint32
	// SettleTicks is how many RESET ticks are discarded before reseeding.
	SettleTicks uint32
	// FreezeLimit is how many consecutive frozen ticks without a touch
	// force a rebase onto the current reading. 0 never rebases.
	FreezeLimit uint32
}

// DefaultParams returns the tuning used on the lamp.
func DefaultParams() Params {
	return Params{
		SamplesShift:        DefaultSamplesShift,
		DerivativeThreshold: DefaultDerivativeThreshold,
		IntegralThreshold:   DefaultIntegralThreshold,
		Leakage:             DefaultLeakage,
		MaxDriftLevel:       DefaultMaxDriftLevel,
		Polarity:            PolarityFalling,
		AutoOffSeconds:      DefaultAutoOffSeconds,
		LoopsPerSecond:      DefaultLoopsPerSecond,
		SettleTicks:         DefaultLoopsPerSecond,
		FreezeLimit:         DefaultFreezeSeconds * DefaultLoopsPerSecond,
	}
}

// Samples returns the baseline window length.
func (p Params) Samples() int {
	return 1 << p.SamplesShift
}

// MaxRampSlope returns the steepest ramp, in counts per tick, that the
// baseline follows without freezing. The window average trails a ramp by
// (Samples+1)/2 ticks, so the derivative settles at that multiple of the
// slope and must stay under MaxDriftLevel. Steeper ramps in the touch
// direction are treated as a touch.
func (p Params) MaxRampSlope() int32 {
	return (2*p.MaxDriftLevel - 1) / int32(p.Samples()+1)
}

// Validate reports tuning that can never produce a working sensor.
func (p Params) Validate() error {
	var errs []error
	if p.SamplesShift == 0 || p.SamplesShift > maxSamplesShift {
		errs = append(errs, fmt.Errorf("samples shift %d out of range 1..%d", p.SamplesShift, maxSamplesShift))
	}
	if p.DerivativeThreshold <= 0 {
		errs = append(errs, errors.New("derivative threshold must be positive"))
	}
	if p.IntegralThreshold <= 0 {
		errs = append(errs, errors.New("integral threshold must be positive"))
	}
	if p.Leakage <= 0 {
		errs = append(errs, errors.New("leakage must be positive"))
	}
	if p.MaxDriftLevel <= 0 {
		errs = append(errs, errors.New("max drift level must be positive"))
	}
	if p.LoopsPerSecond == 0 {
		errs = append(errs, errors.New("loops per second must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid params: %v", errs)
	}
	return nil
}

// EventType represents a lamp transition to be published.
type EventType string

const (
	EventLampOn  EventType = "LAMP_ON"
	EventLampOff EventType = "LAMP_OFF"
	EventAutoOff EventType = "AUTO_OFF"
)

// Event represents a lamp transition. Tick is the controller tick it
// happened on; wall-clock stamping is the caller's job.
type Event struct {
	Tick      uint64
	Type      EventType
	LampOn    bool
	Countdown uint16
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Touches int
	LampOn  int
	LampOff int
	AutoOff int
}

// DetectorState is a copy of the detector's working values for diagnostics.
type DetectorState struct {
	Steady     bool
	Raw        uint16
	Avg        uint16
	Last       uint16
	Derivative int32
	Integral   int32
	Frozen     bool
	// FrozenRun counts consecutive frozen ticks since the last fold or touch.
	FrozenRun uint32
	Rebases   uint32
}

// Result is what one controller step produced.
type Result struct {
	Tick      uint64
	From      Phase
	Phase     Phase
	Touch     bool
	Lamp      bool
	Boot      bool
	Countdown uint16
	Detector  DetectorState
	// Event is set when the lamp changed this tick.
	Event *Event
}

//go:build linux

package gpio

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/touch-lamp/internal/power"
)

// senseLine is one requested sense pin and its edge counter.
type senseLine struct {
	line      *gpiocdev.Line
	edges     atomic.Uint32
	capturing atomic.Bool
}

// RealSampler measures sense lines on actual hardware using the Linux GPIO
// character device. The RC oscillator toggles the line while it is an input;
// both edges are counted by the kernel edge detector.
type RealSampler struct {
	chip  *gpiocdev.Chip
	lines map[int]*senseLine
	sleep power.Sleeper
}

// NewRealSampler requests the given sense pins on chipName.
func NewRealSampler(chipName string, pins []int, sleep power.Sleeper) (*RealSampler, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &RealSampler{
		chip:  chip,
		lines: make(map[int]*senseLine, len(pins)),
		sleep: sleep,
	}
	for _, pin := range pins {
		sl := &senseLine{}
		// The handler is fixed at request time; edges outside a capture
		// window are ignored.
		line, err := chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				if sl.capturing.Load() {
					sl.edges.Add(1)
				}
			}))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request sense pin %d: %w", pin, err)
		}
		sl.line = line
		s.lines[pin] = sl
	}
	return s, nil
}

// Measure discharges the sense line, then counts oscillator edges for the
// capture interval. Errors are logged and read as a 0 count.
func (s *RealSampler) Measure(pin int) uint16 {
	sl, ok := s.lines[pin]
	if !ok {
		log.Printf("gpio: measure on unrequested pin %d", pin)
		return 0
	}

	// Ground the input
	if err := sl.line.Reconfigure(gpiocdev.AsOutput(0), gpiocdev.WithoutEdges); err != nil {
		log.Printf("gpio: discharge pin %d: %v", pin, err)
		return 0
	}
	s.sleep.Sleep(power.IntervalDischarge)

	sl.edges.Store(0)
	sl.capturing.Store(true)
	if err := sl.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBothEdges); err != nil {
		sl.capturing.Store(false)
		log.Printf("gpio: capture pin %d: %v", pin, err)
		return 0
	}
	s.sleep.Sleep(power.IntervalCapture)
	sl.capturing.Store(false)

	n := sl.edges.Load()
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}

// Close releases the sense lines, leaving them as inputs.
func (s *RealSampler) Close() error {
	var errs []error
	for pin, sl := range s.lines {
		if sl.line == nil {
			continue
		}
		if err := sl.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithoutEdges); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure sense pin %d: %w", pin, err))
		}
		if err := sl.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sense pin %d: %w", pin, err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives an output line on actual hardware.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealOutput requests pin as an output, initially off. With activeLow the
// physical level is inverted so Set(true) drives the line low.
func NewRealOutput(chipName string, pin int, activeLow bool) (*RealOutput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := gpiocdev.RequestLine(chipName, pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin}, nil
}

// Set switches the output to its logical level.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	return nil
}

// Close switches the output off and releases the line.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear pin %d: %w", o.pin, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/touch-lamp/internal/power"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealSampler is not available on non-Linux platforms.
type RealSampler struct{}

// NewRealSampler returns an error on non-Linux platforms.
func NewRealSampler(chipName string, pins []int, sleep power.Sleeper) (*RealSampler, error) {
	return nil, errUnsupported
}

// Measure reads 0 on non-Linux platforms.
func (s *RealSampler) Measure(pin int) uint16 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (s *RealSampler) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chipName string, pin int, activeLow bool) (*RealOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(on bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

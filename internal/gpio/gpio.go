// Package gpio provides the capacitive sense sampler and the binary outputs
// (lamp driver, boot indicator) with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sampler takes one raw relaxation-oscillator measurement of a sense line.
type Sampler interface {
	// Measure grounds the line for the discharge interval, then counts
	// oscillator edges for the capture interval and returns the count.
	// It has no error channel: a failed measurement reads as 0.
	Measure(pin int) uint16
}

// Output drives a binary output line.
type Output interface {
	// Set switches the output to its logical on or off level.
	Set(on bool) error

	// Close releases the line, leaving it off.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinSense = 17 // oscillator sense line
	DefaultPinLamp  = 27 // lamp driver
	DefaultPinBoot  = 22 // boot / reseed indicator
)

// DefaultChip is the GPIO character device the pins live on.
const DefaultChip = "gpiochip0"

var (
	_ Sampler = (*RealSampler)(nil)
	_ Sampler = (*FakeSampler)(nil)
	_ Output  = (*RealOutput)(nil)
	_ Output  = (*FakeOutput)(nil)
)

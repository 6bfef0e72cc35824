// Package diag emits one human-readable diagnostic line per wake cycle, with
// enough of the detector state to retune thresholds offline. Output is best
// effort: an emitter never blocks the sampling loop.
package diag

import (
	"fmt"
	"log"
	"strings"

	"github.com/sweeney/touch-lamp/internal/logic"
)

// Record is the state reported for one cycle.
type Record struct {
	Phase     logic.Phase
	Lamp      bool
	Countdown uint16
	Touch     bool
	Detector  logic.DetectorState
}

// FromResult builds a record from a controller step.
func FromResult(res logic.Result) Record {
	return Record{
		Phase:     res.Phase,
		Lamp:      res.Lamp,
		Countdown: res.Countdown,
		Touch:     res.Touch,
		Detector:  res.Detector,
	}
}

// Line formats the record as
//
//	S<phase> <countdown>: <avg>-<raw>=<derivative> I<integral> =>L<lamp>
//
// in hex, followed by T on a touch tick and F while the baseline is frozen.
func (r Record) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "S%01x %04x: %04x-%04x=%04x I%04x =>L%d",
		uint8(r.Phase),
		r.Countdown,
		r.Detector.Avg,
		r.Detector.Raw,
		r.Detector.Derivative,
		r.Detector.Integral,
		boolDigit(r.Lamp))
	if r.Touch {
		b.WriteString(" T")
	}
	if r.Detector.Frozen {
		b.WriteString(" F")
	}
	return b.String()
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Emitter receives one record per cycle.
type Emitter interface {
	Emit(Record)
}

// LogEmitter writes records through a logger. A nil Logger uses log.Default().
type LogEmitter struct {
	Logger *log.Logger
}

// Emit logs the record line.
func (e LogEmitter) Emit(r Record) {
	l := e.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("diag: %s", r.Line())
}

// Multi fans a record out to several emitters.
type Multi []Emitter

// Emit forwards r to every emitter.
func (m Multi) Emit(r Record) {
	for _, e := range m {
		e.Emit(r)
	}
}

// Discard drops every record.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(Record) {}

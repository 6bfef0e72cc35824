package diag

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"go.bug.st/serial"
)

// DefaultQueue is how many lines may wait for a slow transport.
const DefaultQueue = 64

// DefaultBaudRate matches the 9600 baud UART of the first lamp board.
const DefaultBaudRate = 9600

// LineEmitter writes CRLF-terminated lines to a transport from its own
// goroutine. When the queue is full the line is dropped and counted.
// Emit and Close must be called from the same goroutine.
type LineEmitter struct {
	w       io.WriteCloser
	lines   chan string
	done    chan struct{}
	closed  bool
	dropped atomic.Uint64
}

// NewLineEmitter starts a writer for w with the given queue length.
func NewLineEmitter(w io.WriteCloser, queue int) *LineEmitter {
	if queue <= 0 {
		queue = DefaultQueue
	}
	e := &LineEmitter{
		w:     w,
		lines: make(chan string, queue),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// OpenSerial opens a serial port and returns an emitter writing to it.
func OpenSerial(port string, baud int) (*LineEmitter, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return NewLineEmitter(p, DefaultQueue), nil
}

func (e *LineEmitter) run() {
	defer close(e.done)
	failed := false
	for line := range e.lines {
		if _, err := io.WriteString(e.w, line+"\r\n"); err != nil {
			if !failed {
				log.Printf("diag: write error: %v", err)
				failed = true
			}
			continue
		}
		failed = false
	}
}

// Emit queues the record line without blocking.
func (e *LineEmitter) Emit(r Record) {
	if e.closed {
		return
	}
	select {
	case e.lines <- r.Line():
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns how many lines were discarded because the queue was full.
func (e *LineEmitter) Dropped() uint64 {
	return e.dropped.Load()
}

// Close flushes queued lines and closes the transport.
func (e *LineEmitter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.lines)
	<-e.done
	return e.w.Close()
}

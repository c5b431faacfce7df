// internal/proc/event.go

package proc

import (
	"fmt"
	"io"
)

// EventKind identifies what a trace event reports.
type EventKind int

const (
	EventStart EventKind = iota
	EventResume
	EventPreempt
	EventBlock
	EventFinish
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "Start"
	case EventResume:
		return "Resume"
	case EventPreempt:
		return "Preempt"
	case EventBlock:
		return "Block"
	case EventFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

// Event is emitted by Run on every status change of a process.
type Event struct {
	Time     Tick // simulated time the event refers to
	Queue    int
	PID      PID
	Kind     EventKind
	Ran      Tick // CPU time consumed, zero for Start/Resume
	IOLength Tick // only set for EventBlock
}

// String renders the event as a trace line, e.g.
// "[10:<0>] Process 1 has run for 10."
func (e Event) String() string {
	prefix := fmt.Sprintf("[%d:<%d>] Process %d", e.Time, e.Queue, e.PID)
	switch e.Kind {
	case EventStart:
		return prefix + " start running."
	case EventResume:
		return prefix + " resume running from I/O."
	case EventPreempt:
		return fmt.Sprintf("%s has run for %d.", prefix, e.Ran)
	case EventBlock:
		return fmt.Sprintf("%s has run for %d, then blocked. It will perform I/O for %d", prefix, e.Ran, e.IOLength)
	case EventFinish:
		return fmt.Sprintf("%s has run for %d, then finished.", prefix, e.Ran)
	default:
		return prefix + " is in an unknown state."
	}
}

// Sink receives trace events from Run.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// WriterSink writes one trace line per event.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Emit(ev Event) {
	fmt.Fprintln(s.W, ev.String())
}

// Recorder keeps every event it receives, in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(ev Event) { r.Events = append(r.Events, ev) }

// Lines returns the recorded events as trace lines.
func (r *Recorder) Lines() []string {
	lines := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		lines = append(lines, ev.String())
	}
	return lines
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() { r.Events = r.Events[:0] }

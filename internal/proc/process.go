// internal/proc/process.go

package proc

import (
	"errors"
	"fmt"
)

// PID uniquely identifies a process.
type PID uint32

// Tick is a point or a span of simulated time.
type Tick uint64

var (
	// ErrFinished is returned when a finished process is dispatched again.
	ErrFinished = errors.New("dispatch of a finished process")
	// ErrContract is returned when the caller breaks the dispatch contract
	// (zero quantum, first dispatch before arrival).
	ErrContract = errors.New("dispatch contract violated")
	// ErrInvariant is returned when the engine reaches a state it must never reach.
	ErrInvariant = errors.New("process invariant violated")
)

// IsFatal reports whether err signals a driver defect that must abort the
// simulation.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFinished) || errors.Is(err, ErrContract) || errors.Is(err, ErrInvariant)
}

// Process is the control block of one simulated process.
// It is not safe for concurrent use; one driver owns it at a time.
type Process struct {
	pid        PID
	ioInterval Tick // CPU time between two I/O requests, 0 = never blocks
	ioLength   Tick
	workload   Tick
	workDone   Tick
	startTime  Tick

	nextSchedule    Tick
	hasNextSchedule bool // false once finished

	turnaroundTime Tick
	responseTime   Tick
	responded      bool // responseTime has been latched

	allotment Tick
	state     State
}

// New creates a Ready process arriving at arrival.
func New(pid PID, ioInterval, ioLength, workload, arrival Tick) *Process {
	return &Process{
		pid:             pid,
		ioInterval:      ioInterval,
		ioLength:        ioLength,
		workload:        workload,
		startTime:       arrival,
		nextSchedule:    arrival,
		hasNextSchedule: true,
		state:           StateReady,
	}
}

func (p *Process) PID() PID             { return p.pid }
func (p *Process) IOInterval() Tick     { return p.ioInterval }
func (p *Process) IOLength() Tick       { return p.ioLength }
func (p *Process) Workload() Tick       { return p.workload }
func (p *Process) WorkDone() Tick       { return p.workDone }
func (p *Process) StartTime() Tick      { return p.startTime }
func (p *Process) TurnaroundTime() Tick { return p.turnaroundTime }
func (p *Process) ResponseTime() Tick   { return p.responseTime }
func (p *Process) Allotment() Tick      { return p.allotment }
func (p *Process) State() State         { return p.state }

// NextScheduleTime returns the earliest time the process may be dispatched
// again. ok is false once the process has finished.
func (p *Process) NextScheduleTime() (at Tick, ok bool) {
	return p.nextSchedule, p.hasNextSchedule
}

// SetAllotment replaces the remaining CPU budget of the current level.
func (p *Process) SetAllotment(allotment Tick) { p.allotment = allotment }

func (p *Process) IsBlocked() bool  { return p.state == StateBlocked }
func (p *Process) IsFinished() bool { return p.state == StateFinished }

// Run dispatches the process for at most quantum ticks starting at at, on
// the given queue, and returns the CPU time actually consumed. The process
// stops early when it issues an I/O request or completes its workload.
//
// Every returned error is fatal: it means the caller broke the dispatch
// contract and the process must not be used any further.
func (p *Process) Run(quantum, at Tick, queue int, sink Sink) (Tick, error) {
	if sink == nil {
		sink = Discard
	}
	if p.state == StateFinished {
		return 0, fmt.Errorf("%w: process %d", ErrFinished, p.pid)
	}
	if quantum == 0 {
		return 0, fmt.Errorf("%w: process %d dispatched with a zero quantum", ErrContract, p.pid)
	}

	// response time is latched on the very first dispatch only
	if !p.responded {
		if at < p.startTime {
			return 0, fmt.Errorf("%w: process %d dispatched at %d before its arrival at %d",
				ErrContract, p.pid, at, p.startTime)
		}
		p.responseTime = at - p.startTime
		p.responded = true
	}

	switch p.state {
	case StateReady:
		return p.runFromReady(quantum, at, queue, sink)
	case StateRunning:
		return p.runFromRunning(quantum, at, queue, sink)
	case StateBlocked:
		return p.runFromBlocked(quantum, at, queue, sink)
	case StateFinished:
		return 0, p.invariant("finished process passed the dispatch guard")
	default:
		return 0, p.invariant("unknown state %d", int(p.state))
	}
}

func (p *Process) runFromReady(quantum, at Tick, queue int, sink Sink) (Tick, error) {
	p.state = StateRunning
	sink.Emit(Event{Time: at, Queue: queue, PID: p.pid, Kind: EventStart})

	return p.runFromRunning(quantum, at, queue, sink)
}

func (p *Process) runFromBlocked(quantum, at Tick, queue int, sink Sink) (Tick, error) {
	p.state = StateRunning
	sink.Emit(Event{Time: at, Queue: queue, PID: p.pid, Kind: EventResume})

	return p.runFromRunning(quantum, at, queue, sink)
}

func (p *Process) runFromRunning(quantum, at Tick, queue int, sink Sink) (Tick, error) {
	if p.state != StateRunning {
		return 0, p.invariant("running from state %s", p.state)
	}
	if p.workDone > p.workload {
		return 0, p.invariant("work done %d exceeds workload %d", p.workDone, p.workload)
	}

	workLeft := p.workload - p.workDone

	// outcome is decided before work done or any timing field changes
	var (
		ran  Tick
		next State
	)
	switch {
	case p.ioInterval > 0 && p.workBeforeIO() < workLeft && p.workBeforeIO() <= quantum:
		ran, next = p.workBeforeIO(), StateBlocked
	case workLeft <= quantum:
		ran, next = workLeft, StateFinished
	default:
		ran, next = quantum, StateRunning
	}
	if ran == 0 {
		return 0, p.invariant("dispatch at %d consumed no CPU time", at)
	}

	p.workDone += ran
	ev := Event{Time: at + ran, Queue: queue, PID: p.pid, Ran: ran}

	switch next {
	case StateBlocked:
		p.nextSchedule = at + p.ioLength
		p.state = StateBlocked
		ev.Kind, ev.IOLength = EventBlock, p.ioLength
	case StateFinished:
		if p.workDone != p.workload {
			return 0, p.invariant("finished with %d of %d done", p.workDone, p.workload)
		}
		p.turnaroundTime = at - p.startTime + ran
		p.nextSchedule, p.hasNextSchedule = 0, false
		p.state = StateFinished
		ev.Kind = EventFinish
	case StateRunning:
		p.nextSchedule = at + quantum
		ev.Kind = EventPreempt
	default:
		return 0, p.invariant("invalid outcome state %s", next)
	}

	if ran < p.allotment {
		p.allotment -= ran
	} else {
		p.allotment = 0
	}

	sink.Emit(ev)
	return ran, nil
}

// workBeforeIO is the CPU time left until the next I/O request. On an exact
// multiple of the interval it is a whole interval, never zero.
func (p *Process) workBeforeIO() Tick {
	return p.ioInterval - p.workDone%p.ioInterval
}

func (p *Process) invariant(format string, args ...any) error {
	return fmt.Errorf("%w: process %d: %s", ErrInvariant, p.pid, fmt.Sprintf(format, args...))
}

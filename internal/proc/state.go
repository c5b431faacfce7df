// internal/proc/state.go

package proc

// State is the execution state of a process.
//
// Running covers both "on the CPU" and "preempted, waiting in a ready queue":
// after a quantum runs out the process stays Running and the driver's queue
// membership decides when it runs next.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

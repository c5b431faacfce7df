// internal/sched/schedulerEvent.go

package sched

import (
	"mlfqsim/internal/proc"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusWake
	StatusDemote
	StatusBoost
)

// StatusEvent is emitted on queue movements decided by the driver. Process
// execution itself is reported through proc.Event.
type StatusEvent struct {
	Time  proc.Tick
	Kind  StatusKind
	PID   proc.PID
	Queue int       // queue the process lands in
	Until proc.Tick // StatusIdle only: time the CPU idles until
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusWake:
		return "Wake"
	case StatusDemote:
		return "Demote"
	case StatusBoost:
		return "Boost"
	default:
		return "Unknown"
	}
}

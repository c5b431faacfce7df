package sched

import (
	"fmt"
	"io"
	"slices"

	"mlfqsim/internal/proc"
)

// ProcessStats are the final metrics of one process.
type ProcessStats struct {
	PID        proc.PID
	Arrival    proc.Tick
	Workload   proc.Tick
	WorkDone   proc.Tick
	Response   proc.Tick // valid once the process was dispatched
	Turnaround proc.Tick // valid once Finished
	Dispatches int
	Finished   bool
}

// Report summarises a simulation run.
type Report struct {
	RunID         string
	Processes     []ProcessStats // ordered by pid
	Makespan      proc.Tick      // clock when the run stopped
	AvgResponse   float64        // over dispatched processes
	AvgTurnaround float64        // over finished processes
}

func (s *Scheduler) report() Report {
	r := Report{
		RunID:     s.runID,
		Processes: make([]ProcessStats, 0, len(s.procs)),
		Makespan:  s.clock.Now(),
	}

	var (
		response, turnaround proc.Tick
		started, finished    int
	)
	for _, p := range s.procs {
		st := ProcessStats{
			PID:        p.PID(),
			Arrival:    p.StartTime(),
			Workload:   p.Workload(),
			WorkDone:   p.WorkDone(),
			Response:   p.ResponseTime(),
			Turnaround: p.TurnaroundTime(),
			Dispatches: s.dispatches[p.PID()],
			Finished:   p.IsFinished(),
		}
		if p.State() != proc.StateReady {
			response += st.Response
			started++
		}
		if st.Finished {
			turnaround += st.Turnaround
			finished++
		}
		r.Processes = append(r.Processes, st)
	}
	slices.SortFunc(r.Processes, func(a, b ProcessStats) int {
		switch {
		case a.PID < b.PID:
			return -1
		case a.PID > b.PID:
			return 1
		default:
			return 0
		}
	})

	if started > 0 {
		r.AvgResponse = float64(response) / float64(started)
	}
	if finished > 0 {
		r.AvgTurnaround = float64(turnaround) / float64(finished)
	}
	return r
}

// Print writes a human readable summary table.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Run %s finished at %d\n", r.RunID, r.Makespan)
	fmt.Fprintf(w, "%6s %8s %8s %9s %10s %10s\n", "PID", "Arrival", "Workload", "Response", "Turnaround", "Dispatches")
	for _, p := range r.Processes {
		turnaround := "-"
		if p.Finished {
			turnaround = fmt.Sprintf("%d", p.Turnaround)
		}
		fmt.Fprintf(w, "%6d %8d %8d %9d %10s %10d\n", p.PID, p.Arrival, p.Workload, p.Response, turnaround, p.Dispatches)
	}
	fmt.Fprintf(w, "Average response time: %.2f\n", r.AvgResponse)
	fmt.Fprintf(w, "Average turnaround time: %.2f\n", r.AvgTurnaround)
}

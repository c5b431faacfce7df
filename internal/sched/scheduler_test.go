package sched

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlfqsim/internal/proc"
)

func newScheduler(t *testing.T, cfg Config, procs ...*proc.Process) (*Scheduler, *bytes.Buffer) {
	t.Helper()
	var trace bytes.Buffer
	s := New(cfg, nil, &trace)
	for _, p := range procs {
		require.NoError(t, s.Add(p))
	}
	return s, &trace
}

func traceLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func singleQueue(quantum proc.Tick) Config {
	return Config{Queues: []QueueConfig{{Quantum: quantum, Allotment: 1000}}}
}

func TestScheduler_CPUBound(t *testing.T) {
	s, trace := newScheduler(t, singleQueue(10), proc.New(1, 0, 0, 37, 0))

	r, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[0:<0>] Process 1 start running.",
		"[10:<0>] Process 1 has run for 10.",
		"[20:<0>] Process 1 has run for 10.",
		"[30:<0>] Process 1 has run for 10.",
		"[37:<0>] Process 1 has run for 7, then finished.",
	}, traceLines(trace))

	assert.Equal(t, proc.Tick(37), r.Makespan)
	assert.Equal(t, s.RunID(), r.RunID)
	require.Len(t, r.Processes, 1)
	assert.Equal(t, ProcessStats{
		PID: 1, Workload: 37, WorkDone: 37, Turnaround: 37, Dispatches: 4, Finished: true,
	}, r.Processes[0])
	assert.Equal(t, 37.0, r.AvgTurnaround)
	assert.Equal(t, 0.0, r.AvgResponse)
}

func TestScheduler_Demotion(t *testing.T) {
	cfg := Config{Queues: []QueueConfig{
		{Quantum: 2, Allotment: 4},
		{Quantum: 4, Allotment: 8},
	}}
	s, trace := newScheduler(t, cfg, proc.New(1, 0, 0, 10, 0))

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[0:<0>] Process 1 start running.",
		"[2:<0>] Process 1 has run for 2.",
		"[4:<0>] Process 1 has run for 2.",
		"[8:<1>] Process 1 has run for 4.",
		"[10:<1>] Process 1 has run for 2, then finished.",
	}, traceLines(trace))
}

func TestScheduler_IOAndIdle(t *testing.T) {
	p1 := proc.New(1, 5, 3, 12, 0)
	p2 := proc.New(2, 0, 0, 4, 20)
	s, trace := newScheduler(t, singleQueue(10), p2, p1)

	r, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[0:<0>] Process 1 start running.",
		"[5:<0>] Process 1 has run for 5, then blocked. It will perform I/O for 3",
		"[5:<0>] Process 1 resume running from I/O.",
		"[10:<0>] Process 1 has run for 5, then blocked. It will perform I/O for 3",
		"[10:<0>] Process 1 resume running from I/O.",
		"[12:<0>] Process 1 has run for 2, then finished.",
		"[20:<0>] Process 2 start running.",
		"[24:<0>] Process 2 has run for 4, then finished.",
	}, traceLines(trace))

	assert.Equal(t, proc.Tick(24), r.Makespan)
	require.Len(t, r.Processes, 2)
	assert.Equal(t, proc.PID(1), r.Processes[0].PID)
	assert.Equal(t, proc.Tick(12), r.Processes[0].Turnaround)
	assert.Equal(t, 3, r.Processes[0].Dispatches)
	assert.Equal(t, proc.Tick(4), r.Processes[1].Turnaround)
	assert.Equal(t, 8.0, r.AvgTurnaround)
}

func TestScheduler_RoundRobin(t *testing.T) {
	p1 := proc.New(1, 0, 0, 5, 0)
	p2 := proc.New(2, 0, 0, 4, 0)
	s, trace := newScheduler(t, singleQueue(3), p1, p2)

	r, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[0:<0>] Process 1 start running.",
		"[3:<0>] Process 1 has run for 3.",
		"[3:<0>] Process 2 start running.",
		"[6:<0>] Process 2 has run for 3.",
		"[8:<0>] Process 1 has run for 2, then finished.",
		"[9:<0>] Process 2 has run for 1, then finished.",
	}, traceLines(trace))

	assert.Equal(t, proc.Tick(0), p1.ResponseTime())
	assert.Equal(t, proc.Tick(3), p2.ResponseTime())
	assert.Equal(t, proc.Tick(8), p1.TurnaroundTime())
	assert.Equal(t, proc.Tick(9), p2.TurnaroundTime())
	assert.Equal(t, 1.5, r.AvgResponse)
	assert.Equal(t, 8.5, r.AvgTurnaround)
}

func TestScheduler_Boost(t *testing.T) {
	cfg := Config{
		Queues: []QueueConfig{
			{Quantum: 2, Allotment: 2},
			{Quantum: 4, Allotment: 4},
		},
		BoostInterval: 5,
	}
	s, trace := newScheduler(t, cfg, proc.New(1, 0, 0, 20, 0))

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[0:<0>] Process 1 start running.",
		"[2:<0>] Process 1 has run for 2.",
		"[6:<1>] Process 1 has run for 4.",
		"[8:<0>] Process 1 has run for 2.",
		"[12:<1>] Process 1 has run for 4.",
		"[14:<0>] Process 1 has run for 2.",
		"[18:<1>] Process 1 has run for 4.",
		"[20:<0>] Process 1 has run for 2, then finished.",
	}, traceLines(trace))
}

func TestScheduler_WorkConserved(t *testing.T) {
	cfg := Config{
		Queues: []QueueConfig{
			{Quantum: 3, Allotment: 6},
			{Quantum: 5, Allotment: 10},
			{Quantum: 8, Allotment: 16},
		},
		BoostInterval: 50,
	}
	procs := []*proc.Process{
		proc.New(1, 0, 0, 40, 0),
		proc.New(2, 4, 6, 33, 2),
		proc.New(3, 1, 1, 7, 5),
		proc.New(4, 9, 2, 51, 60),
	}
	s, _ := newScheduler(t, cfg, procs...)

	r, err := s.Run(context.Background())
	require.NoError(t, err)

	var total proc.Tick
	for _, p := range procs {
		assert.True(t, p.IsFinished(), "process %d", p.PID())
		assert.Equal(t, p.Workload(), p.WorkDone())
		total += p.Workload()
	}
	assert.GreaterOrEqual(t, r.Makespan, total)
	for _, st := range r.Processes {
		assert.LessOrEqual(t, st.Response, st.Turnaround)
	}
}

func TestScheduler_Add(t *testing.T) {
	s := New(singleQueue(5), nil, nil)
	require.NoError(t, s.Add(proc.New(1, 0, 0, 5, 0)))

	assert.Error(t, s.Add(proc.New(1, 0, 0, 7, 0)))

	started := proc.New(2, 0, 0, 10, 0)
	_, err := started.Run(5, 0, 0, nil)
	require.NoError(t, err)
	assert.Error(t, s.Add(started))
}

func TestScheduler_Cancelled(t *testing.T) {
	s, trace := newScheduler(t, singleQueue(5), proc.New(1, 0, 0, 5, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, trace.String())
	require.Len(t, r.Processes, 1)
	assert.False(t, r.Processes[0].Finished)
}

func TestScheduler_CSVLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	s, _ := newScheduler(t, singleQueue(10), proc.New(1, 0, 0, 15, 0))
	require.NoError(t, s.EnableCSVLogging(path))

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"tick,event,pid,queue,ran",
		"0,Enqueued,1,0,0",
		"0,Start,1,0,0",
		"10,Preempt,1,0,10",
		"15,Finish,1,0,5",
	}, "\n")+"\n", string(data))
}

func TestReport_Print(t *testing.T) {
	r := Report{
		RunID: "run-1",
		Processes: []ProcessStats{
			{PID: 1, Workload: 37, WorkDone: 37, Turnaround: 37, Dispatches: 4, Finished: true},
			{PID: 2, Arrival: 5, Workload: 10, WorkDone: 4, Response: 2, Dispatches: 1},
		},
		Makespan:      41,
		AvgResponse:   1,
		AvgTurnaround: 37,
	}

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "Run run-1 finished at 41")
	assert.Contains(t, out, "     1        0       37         0         37          4")
	assert.Contains(t, out, "     2        5       10         2          -          1")
	assert.Contains(t, out, "Average response time: 1.00")
	assert.Contains(t, out, "Average turnaround time: 37.00")
}

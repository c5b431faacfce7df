// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/google/uuid"

	"mlfqsim/internal/logging"
	"mlfqsim/internal/proc"
)

// Scheduler drives processes through a multi-level feedback queue on a
// simulated clock and streams their trace lines.
type Scheduler struct {
	// Scheduler-related
	cfg        Config
	clock      *TickClock
	levels     []*linkedlistqueue.Queue   // ready queues, index 0 = highest priority
	levelOf    map[proc.PID]int           // current level of every unfinished process
	arrivals   *redblacktree.Tree         // not yet arrived, ordered by arrival time and pid
	waiting    *redblacktree.Tree         // blocked on I/O, ordered by wake time and pid
	procs      map[proc.PID]*proc.Process // every process ever added
	dispatches map[proc.PID]int           // completed dispatches per process
	remaining  int                        // processes not finished yet
	nextBoost  proc.Tick                  // next priority boost, unused when boosting is off
	runID      string

	// logging-related
	log       *slog.Logger
	trace     io.Writer
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a Scheduler. Trace lines go to trace, structured logs to
// logger; both may be nil.
func New(cfg Config, logger *slog.Logger, trace io.Writer) *Scheduler {
	cfg.clamp()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if trace == nil {
		trace = io.Discard
	}

	levels := make([]*linkedlistqueue.Queue, len(cfg.Queues))
	for i := range levels {
		levels[i] = linkedlistqueue.New()
	}

	runID := uuid.NewString()
	return &Scheduler{
		cfg:        cfg,
		clock:      &TickClock{},
		levels:     levels,
		levelOf:    make(map[proc.PID]int),
		arrivals:   redblacktree.NewWith(cmp),
		waiting:    redblacktree.NewWith(cmp),
		procs:      make(map[proc.PID]*proc.Process),
		dispatches: make(map[proc.PID]int),
		nextBoost:  cfg.BoostInterval,
		runID:      runID,
		log:        logger.With(slog.String("run", runID)),
		trace:      trace,
	}
}

// RunID identifies this simulation run in logs and reports.
func (s *Scheduler) RunID() string { return s.runID }

// Now returns the current simulated time.
func (s *Scheduler) Now() proc.Tick { return s.clock.Now() }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"tick", "event", "pid", "queue", "ran"}); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// Add registers a process that has not been dispatched yet. It enters the
// top queue once the clock reaches its arrival time.
func (s *Scheduler) Add(p *proc.Process) error {
	if _, dup := s.procs[p.PID()]; dup {
		return fmt.Errorf("process %d already exists", p.PID())
	}
	if p.State() != proc.StateReady {
		return fmt.Errorf("process %d is %s, only ready processes can be added", p.PID(), p.State())
	}

	s.procs[p.PID()] = p
	s.arrivals.Put(nodeKey{at: p.StartTime(), pid: p.PID()}, p)
	s.remaining++
	return nil
}

// Run dispatches processes until all of them finished, ctx is done, or a
// dispatch fails. The report covers whatever ran so far in every case.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	defer s.closeCSV()

	s.log.Info("simulation started",
		slog.Int("processes", s.remaining),
		slog.Int("queues", len(s.levels)),
		slog.Uint64("boost_interval", uint64(s.cfg.BoostInterval)),
	)

	for s.remaining > 0 {
		// 1) check shutdown
		if err := ctx.Err(); err != nil {
			return s.report(), err
		}

		// 2) move arrivals and finished I/O into the ready queues
		now := s.clock.Now()
		s.admit(now)
		s.wake(now)
		s.boost(now)

		// 3) idle case: nothing ready, jump to the next arrival or I/O completion
		level, p := s.pick()
		if p == nil {
			next, ok := s.nextWakeup()
			if !ok {
				return s.report(), fmt.Errorf("%d processes left but none is ready, blocked or arriving", s.remaining)
			}
			s.status(StatusEvent{Time: now, Kind: StatusIdle, Until: next})
			s.clock.AdvanceTo(next)
			continue
		}

		// 4) dispatch the head of the highest non-empty queue
		ran, err := p.Run(s.cfg.Queues[level].Quantum, now, level, s)
		if err != nil {
			s.log.Error("dispatch failed", slog.Uint64("pid", uint64(p.PID())), logging.ErrAttr(err))
			return s.report(), fmt.Errorf("dispatch process %d: %w", p.PID(), err)
		}
		s.clock.Advance(ran)

		// 5) retire, park or requeue
		s.settle(level, p)
	}

	r := s.report()
	s.log.Info("simulation finished",
		slog.Uint64("makespan", uint64(r.Makespan)),
		slog.Float64("avg_response", r.AvgResponse),
		slog.Float64("avg_turnaround", r.AvgTurnaround),
	)
	return r, nil
}

// admit moves every process whose arrival time has come into the top queue.
func (s *Scheduler) admit(now proc.Tick) {
	for node := s.arrivals.Left(); node != nil && node.Key.(nodeKey).at <= now; node = s.arrivals.Left() {
		s.arrivals.Remove(node.Key)
		p := node.Value.(*proc.Process)
		p.SetAllotment(s.cfg.Queues[0].Allotment)
		s.enqueue(0, p)
		s.status(StatusEvent{Time: now, Kind: StatusEnqueue, PID: p.PID()})
	}
}

// wake moves every process whose I/O has completed back to its queue.
func (s *Scheduler) wake(now proc.Tick) {
	for node := s.waiting.Left(); node != nil && node.Key.(nodeKey).at <= now; node = s.waiting.Left() {
		s.waiting.Remove(node.Key)
		p := node.Value.(*proc.Process)
		level := s.levelOf[p.PID()]
		s.enqueue(level, p)
		s.status(StatusEvent{Time: now, Kind: StatusWake, PID: p.PID(), Queue: level})
	}
}

// boost moves every unfinished process back to the top queue with a fresh
// allotment once per boost interval.
func (s *Scheduler) boost(now proc.Tick) {
	if s.cfg.BoostInterval == 0 || now < s.nextBoost {
		return
	}
	for s.nextBoost <= now {
		s.nextBoost += s.cfg.BoostInterval
	}

	top := s.cfg.Queues[0].Allotment
	for i := 1; i < len(s.levels); i++ {
		for {
			v, ok := s.levels[i].Dequeue()
			if !ok {
				break
			}
			s.enqueue(0, v.(*proc.Process))
		}
	}
	for _, v := range s.levels[0].Values() {
		v.(*proc.Process).SetAllotment(top)
	}
	for _, v := range s.waiting.Values() {
		p := v.(*proc.Process)
		s.levelOf[p.PID()] = 0
		p.SetAllotment(top)
	}
	s.status(StatusEvent{Time: now, Kind: StatusBoost})
}

// pick dequeues the head of the highest priority non-empty queue.
func (s *Scheduler) pick() (int, *proc.Process) {
	for i, q := range s.levels {
		if v, ok := q.Dequeue(); ok {
			return i, v.(*proc.Process)
		}
	}
	return 0, nil
}

// settle files a process after a dispatch: finished processes are retired,
// an exhausted allotment demotes one level, blocked processes wait for
// their I/O and everything else goes to the tail of its queue.
func (s *Scheduler) settle(level int, p *proc.Process) {
	if p.IsFinished() {
		delete(s.levelOf, p.PID())
		s.remaining--
		return
	}

	if p.Allotment() == 0 {
		if level < len(s.levels)-1 {
			level++
			s.status(StatusEvent{Time: s.clock.Now(), Kind: StatusDemote, PID: p.PID(), Queue: level})
		}
		p.SetAllotment(s.cfg.Queues[level].Allotment)
	}

	if p.IsBlocked() {
		next, _ := p.NextScheduleTime()
		s.levelOf[p.PID()] = level
		s.waiting.Put(nodeKey{at: next, pid: p.PID()}, p)
		return
	}
	s.enqueue(level, p)
}

func (s *Scheduler) enqueue(level int, p *proc.Process) {
	s.levelOf[p.PID()] = level
	s.levels[level].Enqueue(p)
}

// nextWakeup returns the earliest pending arrival or I/O completion.
func (s *Scheduler) nextWakeup() (proc.Tick, bool) {
	var (
		next  proc.Tick
		found bool
	)
	for _, tree := range []*redblacktree.Tree{s.arrivals, s.waiting} {
		if node := tree.Left(); node != nil {
			at := node.Key.(nodeKey).at
			if !found || at < next {
				next, found = at, true
			}
		}
	}
	return next, found
}

// Emit implements proc.Sink: it writes the trace line of a process event
// and records it in the CSV log.
func (s *Scheduler) Emit(ev proc.Event) {
	if ev.Kind != proc.EventStart && ev.Kind != proc.EventResume {
		s.dispatches[ev.PID]++
	}
	fmt.Fprintln(s.trace, ev.String())

	s.writeCSV(ev.Time, ev.Kind.String(), ev.PID, ev.Queue, ev.Ran)
}

func (s *Scheduler) status(ev StatusEvent) {
	attrs := []any{
		slog.Uint64("tick", uint64(ev.Time)),
		slog.Uint64("pid", uint64(ev.PID)),
		slog.Int("queue", ev.Queue),
	}
	if ev.Kind == StatusIdle {
		attrs = append(attrs, slog.Uint64("until", uint64(ev.Until)))
	}
	s.log.Debug(ev.Kind.String(), attrs...)

	s.writeCSV(ev.Time, ev.Kind.String(), ev.PID, ev.Queue, 0)
}

func (s *Scheduler) writeCSV(at proc.Tick, kind string, pid proc.PID, queue int, ran proc.Tick) {
	if s.csvWriter == nil {
		return
	}
	rec := []string{
		strconv.FormatUint(uint64(at), 10),
		kind,
		strconv.FormatUint(uint64(pid), 10),
		strconv.Itoa(queue),
		strconv.FormatUint(uint64(ran), 10),
	}
	if err := s.csvWriter.Write(rec); err != nil {
		s.log.Warn("csv write failed", logging.ErrAttr(err))
	}
	s.csvWriter.Flush()
}

func (s *Scheduler) closeCSV() {
	if s.csvFile == nil {
		return
	}
	s.csvWriter.Flush()
	s.csvFile.Close()
	s.csvFile, s.csvWriter = nil, nil
}

// nodeKey is used as a key in the red-black trees.
type nodeKey struct {
	at  proc.Tick
	pid proc.PID
}

// cmp orders nodeKeys by time, then pid.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.at < kb.at:
		return -1
	case ka.at > kb.at:
		return 1
	case ka.pid < kb.pid:
		return -1
	case ka.pid > kb.pid:
		return 1
	default:
		return 0
	}
}

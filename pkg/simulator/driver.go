// Package simulator implements the allocation and scheduling driver (spec
// §4.5): a single-threaded, cooperative dispatcher that pulls queued
// process instances in release-time order and runs each through the
// strategy it was enqueued with, merging every result into one shared
// schedule document.
package simulator

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/schlixmann/ra-pst-scheduler/pkg/allocator"
	"github.com/schlixmann/ra-pst-scheduler/pkg/changeop"
	"github.com/schlixmann/ra-pst-scheduler/pkg/cpsolver"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

// Config carries the CP and heuristic parameters the driver threads
// through to whichever strategy it dispatches to.
type Config struct {
	TimeLimitSeconds float64
	Sigma            int
	Alpha            int
	BreakSymmetries  bool
	Horizon          int
}

// Driver owns the pending-instance queue, the resource timeline shared by
// every instance it allocates, and the single schedule document every
// result is merged into.
type Driver struct {
	Document *schedule.Document
	Timeline *schedule.Timeline
	Solver   cpsolver.Solver
	Config   Config
	// RunID correlates every log line a single driver run emits.
	RunID string

	queue       priorityQueue
	strategy    AllocationType
	strategySet bool
	seq         int
	engines     map[string]*changeop.Engine
	logger      *logrus.Logger
}

// New returns a driver bound to doc (created fresh with New(nil) if the
// caller has nothing to resume from) and solver.
func New(doc *schedule.Document, solver cpsolver.Solver, cfg Config, logger *logrus.Logger) *Driver {
	if doc == nil {
		doc = schedule.New(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Driver{
		Document: doc,
		Timeline: schedule.BuildTimeline(doc),
		Solver:   solver,
		Config:   cfg,
		RunID:    uuid.NewString(),
		engines:  make(map[string]*changeop.Engine),
		logger:   logger,
	}
}

// Enqueue admits a process instance's arena to the driver under the given
// strategy. All instances enqueued across one driver's lifetime must
// share the same strategy; a second, different strategy is rejected with
// MixedStrategyUnsupportedError (spec §4.5, §7).
//
// arena is rebound to instance's composite ids (spec §4.1) before it is
// admitted: this is the one place every arena passes through on its way
// to the driver/CP adapter, regardless of whether it came from a template
// loaded by inputdoc or was built directly by a caller, so two instances
// that happen to share a bare job or task id (spec §8 scenario 3) never
// collide in the shared maps the simulator and CP adapter key by id.
//
// For the two warm-start strategies, Enqueue first runs a quick heuristic
// allocation pass over a clone of arena and merges its result into the
// document so the CP solve has a starting point to read back (the Go
// equivalent of the original simulator's create_warmstart_file bootstrap).
func (d *Driver) Enqueue(instance string, arena *rapst.Arena, releaseTime int, strategy AllocationType) error {
	if d.strategySet && d.strategy != strategy {
		return &rapsterr.MixedStrategyUnsupportedError{Strategies: []string{string(d.strategy), string(strategy)}}
	}
	d.strategy = strategy
	d.strategySet = true

	arena.Rebind(instance)

	if strategy == SingleInstanceCPWarm || strategy == AllInstanceCPWarm {
		if err := d.bootstrapWarmStart(instance, arena, releaseTime); err != nil {
			return err
		}
	}

	item := &QueueItem{
		Instance:    instance,
		Arena:       arena,
		Pending:     pendingTasks(arena),
		ReleaseTime: releaseTime,
		Strategy:    strategy,
		seq:         d.seq,
	}
	d.seq++
	d.engines[instance] = changeop.New(arena)
	heap.Push(&d.queue, item)
	return nil
}

func (d *Driver) bootstrapWarmStart(instance string, arena *rapst.Arena, releaseTime int) error {
	clone := arena.Clone()
	tl := schedule.NewTimeline()
	alloc := allocator.New(clone, tl, d.Config.Horizon)
	engine := changeop.New(clone)

	for _, task := range pendingTasks(clone) {
		if _, err := alloc.AllocateTask(engine, task, releaseTime); err != nil {
			return err
		}
	}
	engine.Finalize()

	rep := clone.ToInstanceRep(instance)
	rep.Fixed = false
	d.Document.Merge(instance, rep)
	return nil
}

// Run drains the queue, dispatching each popped item to its strategy's
// handler, until nothing remains. The two all-instance strategies are
// dispatched as a single joint solve over every pending item rather than
// one item at a time (spec §4.5: "serialize all pending items first, then
// a single solve").
func (d *Driver) Run(ctx context.Context) error {
	if d.strategy == AllInstanceCP || d.strategy == AllInstanceCPWarm {
		if err := d.runAllInstanceCP(ctx); err != nil {
			d.logger.WithFields(logrus.Fields{"run_id": d.RunID, "strategy": d.strategy}).WithError(err).Error("joint all-instance solve failed")
			return err
		}
		return nil
	}

	for d.queue.Len() > 0 {
		item := heap.Pop(&d.queue).(*QueueItem)
		var err error
		switch item.Strategy {
		case Heuristic:
			err = d.stepHeuristic(item)
		case SingleInstanceCP, SingleInstanceCPWarm:
			err = d.solveCP(ctx, item, item.Strategy == SingleInstanceCPWarm)
		default:
			err = fmt.Errorf("simulator: unknown allocation strategy %q", item.Strategy)
		}
		if err != nil {
			d.logger.WithFields(logrus.Fields{"run_id": d.RunID, "instance": item.Instance, "strategy": item.Strategy}).WithError(err).Error("allocation pass failed")
			return err
		}
	}
	return nil
}

// runAllInstanceCP drains every pending item off the queue, builds one
// joint model spanning all of their arenas, and solves it once. Each
// arena already carries composite ids from Enqueue's Rebind call, so the
// concatenated model's intervals and exclusion groups never collide
// across instances the way a bare-id join would.
func (d *Driver) runAllInstanceCP(ctx context.Context) error {
	var items []*QueueItem
	for d.queue.Len() > 0 {
		items = append(items, heap.Pop(&d.queue).(*QueueItem))
	}
	if len(items) == 0 {
		return nil
	}

	arenas := make([]*rapst.Arena, len(items))
	for i, item := range items {
		arenas[i] = item.Arena
	}

	model := cpsolver.BuildJointModel(arenas, d.Config.Sigma, d.Config.Alpha, false)
	if d.strategy == AllInstanceCPWarm {
		if err := cpsolver.WarmStart(&model, d.Document); err != nil {
			return err
		}
	}

	sol, err := d.Solver.Solve(ctx, model, d.Config.TimeLimitSeconds)
	if err != nil {
		return err
	}

	for _, item := range items {
		cpsolver.ApplySolution(item.Arena, sol)
		rep := item.Arena.ToInstanceRep(item.Instance)
		rep.Fixed = true
		meta := sol.Meta
		rep.Solution = &meta
		d.Document.Merge(item.Instance, rep)
	}
	return nil
}

// stepHeuristic allocates exactly one task of item's instance, then
// re-enqueues the instance at the finish time of the job chain it just
// committed, or finalizes and merges it once no task remains.
func (d *Driver) stepHeuristic(item *QueueItem) error {
	if len(item.Pending) == 0 {
		return d.finalizeHeuristic(item)
	}
	task := item.Pending[0]
	alloc := allocator.New(item.Arena, d.Timeline, d.Config.Horizon)
	engine := d.engines[item.Instance]

	chosen, err := alloc.AllocateTask(engine, task, item.ReleaseTime)
	if err != nil {
		return err
	}

	nextRelease := item.ReleaseTime
	if b := item.Arena.Branches[chosen]; b != nil && len(b.Jobs) > 0 {
		last := item.Arena.Jobs[b.Jobs[len(b.Jobs)-1]]
		if last != nil && last.End != nil {
			nextRelease = *last.End
		}
	}

	remaining := pendingTasks(item.Arena)
	if len(remaining) == 0 {
		return d.finalizeHeuristic(item)
	}

	d.seq++
	heap.Push(&d.queue, &QueueItem{
		Instance:    item.Instance,
		Arena:       item.Arena,
		Pending:     remaining,
		ReleaseTime: nextRelease,
		Strategy:    item.Strategy,
		seq:         d.seq,
	})
	return nil
}

func (d *Driver) finalizeHeuristic(item *QueueItem) error {
	engine := d.engines[item.Instance]
	engine.Finalize()

	// The objective is the instance's makespan (latest end among its
	// selected jobs), as on the CP path; it is NaN while any task is
	// unallocated.
	objective := allocator.Measure(item.Arena)
	if !math.IsNaN(objective) {
		makespan := 0
		for _, j := range item.Arena.Jobs {
			if j.Selected && j.End != nil && *j.End > makespan {
				makespan = *j.End
			}
		}
		objective = float64(makespan)
	}

	rep := item.Arena.ToInstanceRep(item.Instance)
	rep.Fixed = true
	rep.Solution = &schedule.SolutionMeta{
		Objective:    objective,
		SolverStatus: "HEURISTIC",
	}
	d.Document.Merge(item.Instance, rep)
	return nil
}

// solveCP solves item's whole instance with the CP adapter in one call.
// warm attaches a starting-point assignment read back from the document
// (populated, for the warm strategy, by Enqueue's bootstrap pass).
func (d *Driver) solveCP(ctx context.Context, item *QueueItem, warm bool) error {
	model := cpsolver.BuildModel(item.Arena, d.Config.Sigma, d.Config.Alpha, false)
	if warm {
		if err := cpsolver.WarmStart(&model, d.Document); err != nil {
			return err
		}
	}

	sol, err := d.Solver.Solve(ctx, model, d.Config.TimeLimitSeconds)
	if err != nil {
		return err
	}
	cpsolver.ApplySolution(item.Arena, sol)

	rep := item.Arena.ToInstanceRep(item.Instance)
	rep.Fixed = true
	meta := sol.Meta
	rep.Solution = &meta
	d.Document.Merge(item.Instance, rep)
	return nil
}

func pendingTasks(a *rapst.Arena) []rapst.TaskID {
	var out []rapst.TaskID
	for _, id := range a.Tasklist() {
		if t := a.Tasks[id]; t != nil && !t.Allocated {
			out = append(out, id)
		}
	}
	return out
}

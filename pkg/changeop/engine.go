// Package changeop implements the change-operation engine (spec §4.2):
// given a working arena and a branch chosen for one of its tasks, it
// rewrites the arena to reflect that choice, honoring the branch's change
// type and deferring structural deletions until the allocation pass that
// triggered them has finished.
package changeop

import (
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
)

// JobTiming is the absolute schedule the allocator or CP adapter computed
// for one job of the branch being committed.
type JobTiming struct {
	Job   rapst.JobID
	Start int
	End   int
}

type pendingDelete struct {
	branch rapst.BranchID
	task   rapst.TaskID
}

// Step is one committed allocation recorded in an engine's trace: which
// branch was chosen for which task, and the finish time of its last job.
// This is diagnostic only, not consumed by allocation itself.
type Step struct {
	Task         rapst.TaskID
	Branch       rapst.BranchID
	FinishTime   int
	QueueWaitSec int
}

// Engine applies committed branch choices to a single process instance's
// arena. It is not safe for concurrent use; the simulator driver owns one
// engine per instance and serializes all calls to Apply through it.
type Engine struct {
	Arena   *rapst.Arena
	Trace   []Step
	pending []pendingDelete
}

// New returns an engine bound to arena.
func New(arena *rapst.Arena) *Engine {
	return &Engine{Arena: arena}
}

// Apply commits branch as the selection for task: it marks the task
// allocated, writes every job's expected timing, and propagates the
// branch's declared deletions. Replace branches are rejected outright;
// Delete branches schedule the host task itself for removal at Finalize.
func (e *Engine) Apply(task rapst.TaskID, branch rapst.BranchID, releaseTime int, timings []JobTiming) error {
	t, ok := e.Arena.Tasks[task]
	if !ok {
		return &rapsterr.InvalidBranchError{TaskID: string(task), BranchID: string(branch), Reason: "unknown task"}
	}
	b, ok := e.Arena.Branches[branch]
	if !ok || b.Task != task {
		return &rapsterr.InvalidBranchError{TaskID: string(task), BranchID: string(branch), Reason: "branch does not belong to task"}
	}
	if b.Change == rapst.Replace {
		return &rapsterr.UnsupportedChangeTypeError{ChangeType: string(rapst.Replace)}
	}

	for _, ti := range timings {
		j, ok := e.Arena.Jobs[ti.Job]
		if !ok {
			continue
		}
		start, end := ti.Start, ti.End
		j.ExpectedStart = &start
		j.ExpectedEnd = &end
	}

	t.Allocated = true
	t.SelectedBranch = branch

	// Cross-task deletions take effect immediately: they are the
	// exclusion rule firing, not a structural rewrite of the host task
	// itself, so the next task iterated by the allocator or driver must
	// already see them as deleted.
	for _, d := range b.Deletes {
		if dt, ok := e.Arena.Tasks[d]; ok {
			dt.Deleted = true
		}
	}

	if b.Change == rapst.Delete {
		e.pending = append(e.pending, pendingDelete{branch: branch, task: task})
	}

	finish := releaseTime
	for _, ti := range timings {
		if ti.End > finish {
			finish = ti.End
		}
	}
	e.Trace = append(e.Trace, Step{Task: task, Branch: branch, FinishTime: finish, QueueWaitSec: finish - releaseTime})

	return nil
}

// Finalize applies every deferred host-task removal queued by Apply. It
// is called once an allocation pass over the whole tasklist has
// completed.
func (e *Engine) Finalize() {
	for _, pd := range e.pending {
		if t, ok := e.Arena.Tasks[pd.task]; ok {
			t.Deleted = true
		}
	}
	e.pending = nil
}

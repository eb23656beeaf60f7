// Package allocator implements the earliest-finish-time heuristic
// allocator (spec §4.3): for a task due for allocation, it evaluates
// every admissible branch, computes each branch's earliest completion
// given the current resource timeline, and commits the best one through
// the change-operation engine.
package allocator

import (
	"math"
	"sort"

	"github.com/schlixmann/ra-pst-scheduler/pkg/changeop"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

// Candidate is one branch's evaluated earliest-finish outcome.
type Candidate struct {
	Branch  rapst.BranchID
	Cost    int
	Finish  int
	Timings []changeop.JobTiming
}

// EarliestFinishAllocator picks, for a given task and release time, the
// admissible branch with the lowest finish time, breaking ties first by
// branch cost and then by lexicographically smaller branch id (spec
// §4.3's tie-break order).
type EarliestFinishAllocator struct {
	Arena    *rapst.Arena
	Timeline *schedule.Timeline
	Horizon  int
}

// New returns an allocator bound to arena and timeline. horizon bounds
// how far out a job may be scheduled; branches that cannot finish within
// it are treated as inadmissible.
func New(arena *rapst.Arena, timeline *schedule.Timeline, horizon int) *EarliestFinishAllocator {
	return &EarliestFinishAllocator{Arena: arena, Timeline: timeline, Horizon: horizon}
}

// Evaluate computes the earliest-finish outcome of every admissible
// branch of task without mutating any state, and returns them sorted by
// the §4.3 tie-break order (best first).
func (a *EarliestFinishAllocator) Evaluate(task rapst.TaskID, releaseTime int) ([]Candidate, error) {
	t, ok := a.Arena.Tasks[task]
	if !ok {
		return nil, &rapsterr.InvalidBranchError{TaskID: string(task), Reason: "unknown task"}
	}
	var candidates []Candidate
	for _, bid := range t.Branches {
		b := a.Arena.Branches[bid]
		if b == nil {
			continue
		}
		cand, ok := a.evaluateBranch(b, releaseTime)
		if ok {
			candidates = append(candidates, cand)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Finish != candidates[j].Finish {
			return candidates[i].Finish < candidates[j].Finish
		}
		if candidates[i].Cost != candidates[j].Cost {
			return candidates[i].Cost < candidates[j].Cost
		}
		return candidates[i].Branch < candidates[j].Branch
	})
	return candidates, nil
}

func (a *EarliestFinishAllocator) evaluateBranch(b *rapst.Branch, releaseTime int) (Candidate, bool) {
	bound := releaseTime
	timings := make([]changeop.JobTiming, 0, len(b.Jobs))
	totalCost := 0
	for _, jid := range b.Jobs {
		j := a.Arena.Jobs[jid]
		if j == nil {
			return Candidate{}, false
		}
		start := a.Timeline.EarliestWindow(string(j.Resource), bound, j.Cost)
		end := start + j.Cost
		if a.Horizon > 0 && end > a.Horizon {
			return Candidate{}, false
		}
		timings = append(timings, changeop.JobTiming{Job: jid, Start: start, End: end})
		totalCost += j.Cost
		bound = end
	}
	return Candidate{Branch: b.ID, Cost: totalCost, Finish: bound, Timings: timings}, true
}

// AllocateTask evaluates task's admissible branches, commits the best one
// through engine, reserves its jobs' windows on the timeline, and returns
// the chosen branch. If no admissible branch fits within the horizon it
// returns an InvalidBranchError.
func (a *EarliestFinishAllocator) AllocateTask(engine *changeop.Engine, task rapst.TaskID, releaseTime int) (rapst.BranchID, error) {
	candidates, err := a.Evaluate(task, releaseTime)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &rapsterr.InvalidBranchError{TaskID: string(task), Reason: "no admissible branch fits within the horizon"}
	}
	best := candidates[0]
	if err := engine.Apply(task, best.Branch, releaseTime, best.Timings); err != nil {
		return "", err
	}
	for _, ti := range best.Timings {
		j := a.Arena.Jobs[ti.Job]
		start, end := ti.Start, ti.End
		j.Selected = true
		j.Start = &start
		j.End = &end
		a.Timeline.Reserve(string(j.Resource), start, end)
	}
	return best.Branch, nil
}

// Measure returns the sum of committed job costs across the arena's
// allocated tasks, or math.NaN if any task remains unallocated.
func Measure(a *rapst.Arena) float64 {
	total := 0
	for _, tid := range a.Order {
		t := a.Tasks[tid]
		if t.Deleted {
			continue
		}
		if !t.Allocated {
			return math.NaN()
		}
		b := a.Branches[t.SelectedBranch]
		if b == nil {
			return math.NaN()
		}
		total += b.Cost(a)
	}
	return float64(total)
}

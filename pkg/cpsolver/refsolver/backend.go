// Package refsolver is the in-process reference implementation of
// cpsolver.Solver shipped alongside the adapter. It exists because the
// real constraint solver this module models against is an external
// collaborator out of scope for this repository (spec §1, §9): without
// it, cpsolver's Model and the rest of the engine built on top of it
// would have nothing to run against. Backend is a greedy list scheduler,
// not a true constraint solver; production deployments are expected to
// supply their own cpsolver.Solver wrapping a real CP/MIP engine.
package refsolver

import (
	"context"
	"sort"

	"github.com/schlixmann/ra-pst-scheduler/pkg/cpsolver"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

// Backend implements cpsolver.Solver with a single deterministic greedy
// pass: exclusion groups are visited in a dependency-respecting order
// (orderExclusions), and for each it picks the branch whose jobs finish
// earliest against the resource timeline built up so far, honoring
// model.Precedences as a lower bound on every candidate job's start.
// Mandatory intervals are reserved first, unmodified, with their sigma
// slack already folded into their length.
type Backend struct{}

// New returns a ready-to-use reference backend.
func New() *Backend { return &Backend{} }

func intervalsByJob(model cpsolver.Model) map[rapst.JobID]cpsolver.IntervalVar {
	out := make(map[rapst.JobID]cpsolver.IntervalVar, len(model.Intervals))
	for _, iv := range model.Intervals {
		out[iv.Job] = iv
	}
	return out
}

// Solve implements cpsolver.Solver.
func (b *Backend) Solve(ctx context.Context, model cpsolver.Model, timeLimitSeconds float64) (cpsolver.Solution, error) {
	select {
	case <-ctx.Done():
		return cpsolver.Solution{}, &rapsterr.SolverTimeoutNoIncumbentError{TimeLimitSeconds: timeLimitSeconds}
	default:
	}

	byJob := intervalsByJob(model)
	timeline := schedule.NewTimeline()
	sol := cpsolver.Solution{
		Selected: make(map[rapst.JobID]bool),
		Start:    make(map[rapst.JobID]int),
	}

	// finish tracks each committed job's end time, for whichever of its
	// successors' after edges (model.Precedences) need it as a lower
	// bound on their own start.
	finish := make(map[rapst.JobID]int, len(model.Intervals))
	predOf := predecessorsOf(model.Precedences)

	// Mandatory (already-fixed) intervals are reserved first so the
	// remaining decisions are scheduled around them, matching cp_docplex's
	// treatment of fixed instances.
	for _, iv := range model.Intervals {
		if !iv.Mandatory {
			continue
		}
		start := iv.MinStart
		sol.Selected[iv.Job] = true
		sol.Start[iv.Job] = start
		timeline.Reserve(string(iv.Resource), start, start+iv.Length)
		finish[iv.Job] = start + iv.Length
	}

	branchJobs := groupJobsByBranch(model)

	// Exclusion groups are visited in an order that respects cross-task
	// after edges (spec §3.2, §4.4(a)): a group naming another group's
	// candidate job as a predecessor is only resolved once that other
	// group has already committed a branch, so predFinish below always
	// sees a real finish time rather than defaulting to zero.
	for _, ex := range orderExclusions(model.Exclusions, branchJobs, predOf) {
		best, _, ok := bestBranch(ex, branchJobs, byJob, timeline, model.WarmStart, predOf, finish)
		if !ok {
			return cpsolver.Solution{}, &rapsterr.InfeasibleError{Detail: "no admissible branch for task " + string(ex.Task)}
		}
		for _, jid := range branchJobs[best] {
			iv := byJob[jid]
			lb := startLowerBound(iv, model.WarmStart)
			if pf := predFinish(jid, predOf, finish); pf > lb {
				lb = pf
			}
			start := timeline.EarliestWindow(string(iv.Resource), lb, iv.Length)
			sol.Selected[jid] = true
			sol.Start[jid] = start
			timeline.Reserve(string(iv.Resource), start, start+iv.Length)
			finish[jid] = start + iv.Length
		}
	}

	makespan := 0
	totalLength := 0
	for jid, selected := range sol.Selected {
		if !selected {
			continue
		}
		iv := byJob[jid]
		end := sol.Start[jid] + iv.Length
		if end > makespan {
			makespan = end
		}
		totalLength += iv.Length
	}

	sol.Meta = schedule.SolutionMeta{
		Objective:           float64(makespan),
		ComputingTimeS:      0,
		SolverStatus:        "OPTIMAL_REFERENCE",
		TotalIntervalLength: totalLength,
	}
	return sol, nil
}

func startLowerBound(iv cpsolver.IntervalVar, warm bool) int {
	if warm && iv.StartingPointStart > iv.MinStart {
		return iv.StartingPointStart
	}
	return iv.MinStart
}

// groupJobsByBranch indexes non-mandatory intervals by branch, preserving
// the left-to-right order BuildModel appended them in (which is each
// branch's internal job order).
func groupJobsByBranch(model cpsolver.Model) map[rapst.BranchID][]rapst.JobID {
	out := make(map[rapst.BranchID][]rapst.JobID)
	for _, iv := range model.Intervals {
		if iv.Mandatory {
			continue
		}
		out[iv.Branch] = append(out[iv.Branch], iv.Job)
	}
	return out
}

// bestBranch evaluates each branch in ex.Branches the same way the
// heuristic allocator would and returns the earliest-finishing one.
// predOf/finish fold each candidate job's after-edge predecessors into its
// lower bound, the same way an already-reserved mandatory interval does.
func bestBranch(ex cpsolver.ExclusionGroup, branchJobs map[rapst.BranchID][]rapst.JobID, byJob map[rapst.JobID]cpsolver.IntervalVar, timeline *schedule.Timeline, warm bool, predOf map[rapst.JobID][]rapst.JobID, finish map[rapst.JobID]int) (rapst.BranchID, int, bool) {
	type scored struct {
		branch rapst.BranchID
		cost   int
		finish int
	}
	var candidates []scored
	for _, bid := range ex.Branches {
		jobs, ok := branchJobs[bid]
		if !ok {
			continue
		}
		bound := 0
		cost := 0
		feasible := true
		for _, jid := range jobs {
			iv, ok := byJob[jid]
			if !ok {
				feasible = false
				break
			}
			lb := startLowerBound(iv, warm)
			if lb > bound {
				bound = lb
			}
			if pf := predFinish(jid, predOf, finish); pf > bound {
				bound = pf
			}
			start := timeline.EarliestWindow(string(iv.Resource), bound, iv.Length)
			bound = start + iv.Length
			cost += iv.Length
		}
		if !feasible {
			continue
		}
		candidates = append(candidates, scored{branch: bid, cost: cost, finish: bound})
	}
	if len(candidates) == 0 {
		return "", 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].finish != candidates[j].finish {
			return candidates[i].finish < candidates[j].finish
		}
		if candidates[i].cost != candidates[j].cost {
			return candidates[i].cost < candidates[j].cost
		}
		return candidates[i].branch < candidates[j].branch
	})
	return candidates[0].branch, candidates[0].finish, true
}

// predecessorsOf inverts a model's precedence list into a per-job
// predecessor lookup.
func predecessorsOf(precedences []cpsolver.Precedence) map[rapst.JobID][]rapst.JobID {
	out := make(map[rapst.JobID][]rapst.JobID)
	for _, p := range precedences {
		out[p.After] = append(out[p.After], p.Before)
	}
	return out
}

// predFinish returns the latest finish time recorded so far among jid's
// declared predecessors, or zero if jid has none or none have been
// committed yet.
func predFinish(jid rapst.JobID, predOf map[rapst.JobID][]rapst.JobID, finish map[rapst.JobID]int) int {
	max := 0
	for _, pred := range predOf[jid] {
		if f, ok := finish[pred]; ok && f > max {
			max = f
		}
	}
	return max
}

// orderExclusions returns exclusions in an order where a group naming
// another group's candidate job as an after-predecessor always comes after
// that group, via a stable Kahn's-algorithm topological sort over the
// per-group dependency graph. A cycle (which a validated arena should
// never produce) falls back to the declared order rather than panicking.
func orderExclusions(exclusions []cpsolver.ExclusionGroup, branchJobs map[rapst.BranchID][]rapst.JobID, predOf map[rapst.JobID][]rapst.JobID) []cpsolver.ExclusionGroup {
	n := len(exclusions)
	if n == 0 {
		return exclusions
	}

	jobGroup := make(map[rapst.JobID]int)
	for gi, ex := range exclusions {
		for _, bid := range ex.Branches {
			for _, jid := range branchJobs[bid] {
				jobGroup[jid] = gi
			}
		}
	}

	dependsOn := make([]map[int]bool, n)
	for gi := range dependsOn {
		dependsOn[gi] = make(map[int]bool)
	}
	for jid, gi := range jobGroup {
		for _, pred := range predOf[jid] {
			if pgi, ok := jobGroup[pred]; ok && pgi != gi {
				dependsOn[gi][pgi] = true
			}
		}
	}

	indegree := make([]int, n)
	children := make([][]int, n)
	for gi, deps := range dependsOn {
		indegree[gi] = len(deps)
		for dep := range deps {
			children[dep] = append(children[dep], gi)
		}
	}
	for gi := range children {
		sort.Ints(children[gi])
	}

	var ready []int
	for gi := 0; gi < n; gi++ {
		if indegree[gi] == 0 {
			ready = append(ready, gi)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		gi := ready[0]
		ready = ready[1:]
		order = append(order, gi)
		for _, c := range children[gi] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != n {
		return exclusions
	}
	out := make([]cpsolver.ExclusionGroup, n)
	for i, gi := range order {
		out[i] = exclusions[gi]
	}
	return out
}

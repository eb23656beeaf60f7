package cpsolver

import (
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
)

// BuildModel translates arena into a CP model. Tasks already allocated
// (fixed by a prior allocation or solve pass) become mandatory intervals
// carrying sigma slack on their length, the rest become optional
// intervals competing under their task's exclusion group, exactly as
// cp_docplex.py builds fixed vs. non-fixed interval variables. When
// schedulingOnly is set, alpha is applied as the symmetry-breaking
// coefficient on the objective (spec §4.4(b)); alpha is otherwise zero.
func BuildModel(arena *rapst.Arena, sigma, alpha int, schedulingOnly bool) Model {
	m := Model{Sigma: sigma}
	if schedulingOnly {
		m.Alpha = alpha
	}

	for _, tid := range arena.Order {
		t := arena.Tasks[tid]
		if t == nil || t.Deleted {
			continue
		}
		if t.Allocated {
			b := arena.Branches[t.SelectedBranch]
			if b == nil {
				continue
			}
			for _, jid := range b.Jobs {
				j := arena.Jobs[jid]
				if j == nil {
					continue
				}
				start := 0
				if j.Start != nil {
					start = *j.Start
				} else if j.ExpectedStart != nil {
					start = *j.ExpectedStart
				}
				m.Intervals = append(m.Intervals, IntervalVar{
					Job:       jid,
					Branch:    b.ID,
					Resource:  j.Resource,
					Length:    j.Cost + sigma,
					Mandatory: true,
					MinStart:  start,
				})
			}
			continue
		}

		group := arena.ExclusionGroup(tid)
		m.Exclusions = append(m.Exclusions, ExclusionGroup{Task: tid, Branches: group})
		for _, bid := range t.Branches {
			b := arena.Branches[bid]
			if b == nil {
				continue
			}
			for _, jid := range b.Jobs {
				j := arena.Jobs[jid]
				if j == nil {
					continue
				}
				m.Intervals = append(m.Intervals, IntervalVar{
					Job:      jid,
					Branch:   bid,
					Resource: j.Resource,
					Length:   j.Cost,
					MinStart: j.MinStartTime,
				})
			}
		}
	}

	// Precedence edges come from each job's declared After list (spec
	// §4.4(a): "for every after edge, end_before_start(pred, succ)"), not
	// from branch-internal job-list adjacency: an after edge routinely
	// crosses branch and task boundaries (spec §8 scenario 2). Only edges
	// between two jobs that both made it into the model are emitted; a
	// predecessor whose own branch was never selected contributes no
	// constraint.
	inModel := make(map[rapst.JobID]bool, len(m.Intervals))
	for _, iv := range m.Intervals {
		inModel[iv.Job] = true
	}
	for _, iv := range m.Intervals {
		j := arena.Jobs[iv.Job]
		if j == nil {
			continue
		}
		for _, pred := range j.After {
			if inModel[pred] {
				m.Precedences = append(m.Precedences, Precedence{Before: pred, After: iv.Job})
			}
		}
	}
	return m
}

// ApplySolution writes a solver's decisions back onto arena's jobs and
// marks their tasks allocated, mirroring what the change-operation engine
// does for a heuristically allocated branch.
func ApplySolution(arena *rapst.Arena, sol Solution) {
	chosenBranch := make(map[rapst.TaskID]rapst.BranchID)
	for jid, selected := range sol.Selected {
		j := arena.Jobs[jid]
		if j == nil {
			continue
		}
		j.Selected = selected
		if !selected {
			continue
		}
		start := sol.Start[jid]
		end := start + j.Cost
		j.Start = &start
		j.End = &end
		chosenBranch[arena.Branches[j.Branch].Task] = j.Branch
	}
	for tid, bid := range chosenBranch {
		if t := arena.Tasks[tid]; t != nil {
			t.Allocated = true
			t.SelectedBranch = bid
		}
	}
}

package cpsolver

import (
	"context"

	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

// FullSolve builds the complete branch-selection-and-scheduling model for
// arena and solves it in one shot (spec §4.4(a)): both which branch each
// task takes and when each of its jobs runs are decision variables.
func FullSolve(ctx context.Context, solver Solver, arena *rapst.Arena, sigma int, timeLimitSeconds float64) (Solution, error) {
	model := BuildModel(arena, sigma, 0, false)
	return solve(ctx, solver, model, timeLimitSeconds)
}

// SchedulingOnlySolve fixes every task's branch to its already-selected
// one (set by a prior heuristic allocation pass) and only decides timing,
// with alpha applied as a symmetry-breaking term on the objective (spec
// §4.4(b)).
func SchedulingOnlySolve(ctx context.Context, solver Solver, arena *rapst.Arena, sigma, alpha int, timeLimitSeconds float64) (Solution, error) {
	model := BuildModel(arena, sigma, alpha, true)
	return solve(ctx, solver, model, timeLimitSeconds)
}

// DecomposedSolve runs the allocator-then-scheduling-only two-phase
// strategy described in spec §4.4(c): the caller must have already committed a
// branch per task (e.g. via the heuristic allocator) before this is
// called; DecomposedSolve then only optimizes timing.
func DecomposedSolve(ctx context.Context, solver Solver, arena *rapst.Arena, sigma, alpha int, timeLimitSeconds float64) (Solution, error) {
	return SchedulingOnlySolve(ctx, solver, arena, sigma, alpha, timeLimitSeconds)
}

func solve(ctx context.Context, solver Solver, model Model, timeLimitSeconds float64) (Solution, error) {
	sol, err := solver.Solve(ctx, model, timeLimitSeconds)
	if err != nil {
		return Solution{}, err
	}
	if sol.Meta.SolverStatus == "" {
		return Solution{}, &rapsterr.InfeasibleError{Detail: "solver returned no status"}
	}
	return sol, nil
}

// BuildJointModel builds one combined model spanning every arena in
// arenas: a single no_overlap per resource and a single objective over all
// of their decision variables together (spec §4.4(a), §4.5: "over all
// instances"), rather than solving each instance against the others'
// already-fixed results one at a time. Every arena passed in must already
// carry instance-qualified composite ids (rapst.Arena.Rebind), or jobs and
// branches from different arenas collide in the concatenated model the
// same way they would in any other id-keyed map.
func BuildJointModel(arenas []*rapst.Arena, sigma, alpha int, schedulingOnly bool) Model {
	m := Model{Sigma: sigma}
	if schedulingOnly {
		m.Alpha = alpha
	}
	for _, arena := range arenas {
		part := BuildModel(arena, sigma, alpha, schedulingOnly)
		m.Intervals = append(m.Intervals, part.Intervals...)
		m.Exclusions = append(m.Exclusions, part.Exclusions...)
		m.Precedences = append(m.Precedences, part.Precedences...)
	}
	return m
}

// WarmStart attaches a starting-point assignment derived from doc's
// already-committed job timings to model's non-mandatory intervals. It
// fails with StartingPointMismatchError if the warm-start document does
// not name exactly one starting point per non-mandatory interval, the Go
// equivalent of cp_docplex.py's ValueError on a cardinality mismatch.
func WarmStart(model *Model, doc *schedule.Document) error {
	starts := make(map[rapst.JobID]int)
	for _, rep := range doc.Instances {
		for jid, j := range rep.Jobs {
			if j.Selected && j.Start != nil {
				starts[rapst.JobID(jid)] = *j.Start
			}
		}
	}

	nonMandatory := 0
	matched := 0
	for i, iv := range model.Intervals {
		if iv.Mandatory {
			continue
		}
		nonMandatory++
		if start, ok := starts[iv.Job]; ok {
			model.Intervals[i].StartingPointStart = start
			matched++
		}
	}
	if matched != nonMandatory {
		return &rapsterr.StartingPointMismatchError{WarmStartSize: matched, ModelSize: nonMandatory}
	}
	model.WarmStart = true
	return nil
}

package refsolver

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/schlixmann/ra-pst-scheduler/pkg/cpsolver"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
)

// buildArena constructs one task with branchCosts[i] giving the single job
// cost of branch i, every branch competing for the same sole resource. This
// is deliberately the simplest case that still forces the exclusion
// constraint and the no-overlap constraint to do real work: every admissible
// branch wants the same resource, so at most one can ever be selected at a
// time and the backend must actually choose.
func buildArena(branchCosts []int) *rapst.Arena {
	a := rapst.NewArena([]rapst.ResourceID{"R1"})
	a.AddTask("t1")
	for i, cost := range branchCosts {
		jid := rapst.JobID(fmt.Sprintf("j%d", i))
		if _, err := a.AddBranch(rapst.BranchID(fmt.Sprintf("b%d", i)), "t1", rapst.InsertAfter, nil, []rapst.JobSpec{
			{ID: jid, Resource: "R1", Cost: cost},
		}); err != nil {
			panic(err)
		}
	}
	return a
}

func TestRefsolverProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based tests in short mode")
	}

	properties := gopter.NewProperties(nil)

	// Determinism (spec §8): solving the same model twice with the
	// reference backend yields an identical solution, since the backend
	// makes no use of randomness or wall-clock time anywhere in its
	// decision order.
	properties.Property("SolveIsDeterministic", prop.ForAll(
		func(branchCosts []int) bool {
			if len(branchCosts) == 0 {
				return true
			}
			model := cpsolver.BuildModel(buildArena(branchCosts), 0, 0, false)
			backend := New()
			sol1, err1 := backend.Solve(context.Background(), model, 1)
			sol2, err2 := backend.Solve(context.Background(), model, 1)
			if err1 != nil || err2 != nil {
				return err1 == nil && err2 == nil
			}
			return solutionsEqual(sol1, sol2)
		},
		gen.SliceOfN(5, gen.IntRange(1, 8)),
	))

	// Exclusion cardinality (spec §8): exactly one branch of the task's
	// single exclusion group is ever selected.
	properties.Property("ExactlyOneBranchSelected", prop.ForAll(
		func(branchCosts []int) bool {
			if len(branchCosts) == 0 {
				return true
			}
			arena := buildArena(branchCosts)
			model := cpsolver.BuildModel(arena, 0, 0, false)
			sol, err := New().Solve(context.Background(), model, 1)
			if err != nil {
				return false
			}
			count := 0
			for _, iv := range model.Intervals {
				if sol.Selected[iv.Job] {
					count++
				}
			}
			return count == 1
		},
		gen.SliceOfN(5, gen.IntRange(1, 8)),
	))

	// Start lower bound (spec §8): every selected job starts at or after
	// its interval's MinStart. This property does not check no-overlap.
	properties.Property("SelectedIntervalRespectsMinStart", prop.ForAll(
		func(branchCosts []int) bool {
			if len(branchCosts) == 0 {
				return true
			}
			arena := buildArena(branchCosts)
			model := cpsolver.BuildModel(arena, 0, 0, false)
			sol, err := New().Solve(context.Background(), model, 1)
			if err != nil {
				return false
			}
			for _, iv := range model.Intervals {
				if !sol.Selected[iv.Job] {
					continue
				}
				if sol.Start[iv.Job] < iv.MinStart {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.IntRange(1, 8)),
	))

	properties.TestingRun(t)
}

func solutionsEqual(a, b cpsolver.Solution) bool {
	if len(a.Selected) != len(b.Selected) || len(a.Start) != len(b.Start) {
		return false
	}
	keys := make([]string, 0, len(a.Selected))
	for jid := range a.Selected {
		keys = append(keys, string(jid))
	}
	sort.Strings(keys)
	for _, k := range keys {
		jid := rapst.JobID(k)
		if a.Selected[jid] != b.Selected[jid] {
			return false
		}
		if a.Start[jid] != b.Start[jid] {
			return false
		}
	}
	return true
}

package rapst

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildArena assembles a single-task arena with one branch per entry of
// jobCounts, each branch holding that many jobs alternating across a fixed
// two-resource pool. It is always structurally valid by construction, so the
// properties below probe invariants that must hold for any such arena
// instead of encoding validity itself as a property.
func buildArena(jobCounts []int) *Arena {
	a := NewArena([]ResourceID{"R1", "R2"})
	a.AddTask("t1")
	for bi, jc := range jobCounts {
		jobs := make([]JobSpec, jc)
		for ji := 0; ji < jc; ji++ {
			res := ResourceID("R1")
			if ji%2 == 1 {
				res = "R2"
			}
			jobs[ji] = JobSpec{ID: JobID(fmt.Sprintf("t1-b%d-j%d", bi, ji)), Resource: res, Cost: ji + 1}
		}
		if _, err := a.AddBranch(BranchID(fmt.Sprintf("t1-b%d", bi)), "t1", InsertAfter, nil, jobs); err != nil {
			panic(err)
		}
	}
	return a
}

func TestArenaProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based tests in short mode")
	}

	properties := gopter.NewProperties(nil)

	// Exclusion cardinality (spec §8): a task's exclusion group always
	// contains exactly one entry per branch the task itself owns, since
	// this generator never attaches cross-task deletes.
	properties.Property("ExclusionGroupCardinalityMatchesOwnBranches", prop.ForAll(
		func(jobCounts []int) bool {
			a := buildArena(jobCounts)
			return len(a.ExclusionGroup("t1")) == len(jobCounts)
		},
		gen.SliceOfN(5, gen.IntRange(0, 4)),
	))

	// A freshly built arena from AddTask/AddBranch against a declared
	// resource pool is always structurally valid.
	properties.Property("FreshlyBuiltArenaValidates", prop.ForAll(
		func(jobCounts []int) bool {
			return buildArena(jobCounts).Validate() == nil
		},
		gen.SliceOfN(5, gen.IntRange(0, 4)),
	))

	// Cloning is a pure, independent deep copy: mutating the clone's task
	// state never reaches back into the original.
	properties.Property("CloneIsIndependentOfOriginal", prop.ForAll(
		func(jobCounts []int) bool {
			a := buildArena(jobCounts)
			clone := a.Clone()
			clone.Tasks["t1"].Allocated = true
			clone.Tasks["t1"].Deleted = true
			return !a.Tasks["t1"].Allocated && !a.Tasks["t1"].Deleted
		},
		gen.SliceOfN(5, gen.IntRange(0, 4)),
	))

	// Branch cost is always the sum of its own jobs' costs, regardless of
	// how many branches or jobs the generator produced.
	properties.Property("BranchCostIsSumOfJobCosts", prop.ForAll(
		func(jobCounts []int) bool {
			a := buildArena(jobCounts)
			for _, bid := range a.Tasks["t1"].Branches {
				b := a.Branches[bid]
				want := 0
				for _, jid := range b.Jobs {
					want += a.Jobs[jid].Cost
				}
				if b.Cost(a) != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

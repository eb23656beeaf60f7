package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schlixmann/ra-pst-scheduler/pkg/cpsolver/refsolver"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
)

func buildArena(t *testing.T, resources ...rapst.ResourceID) *rapst.Arena {
	t.Helper()
	if len(resources) == 0 {
		resources = []rapst.ResourceID{"R1", "R2"}
	}
	a := rapst.NewArena(resources)
	a.AddTask("t1")
	a.AddTask("t2")
	_, err := a.AddBranch("t1-b1", "t1", rapst.InsertBefore, nil, []rapst.JobSpec{
		{ID: "j1", Resource: "R1", Cost: 3},
	})
	require.NoError(t, err)
	_, err = a.AddBranch("t2-b1", "t2", rapst.InsertBefore, nil, []rapst.JobSpec{
		{ID: "j2", Resource: "R2", Cost: 2},
	})
	require.NoError(t, err)
	return a
}

func TestDriverRunsHeuristicToCompletion(t *testing.T) {
	d := New(nil, refsolver.New(), Config{}, nil)
	a := buildArena(t)

	require.NoError(t, d.Enqueue("inst-1", a, 0, Heuristic))
	require.NoError(t, d.Run(context.Background()))

	rep, ok := d.Document.Instances["inst-1"]
	require.True(t, ok)
	assert.True(t, rep.Fixed)
	assert.NotNil(t, rep.Solution)
	assert.Equal(t, "HEURISTIC", rep.Solution.SolverStatus)
}

func TestDriverRejectsMixedStrategies(t *testing.T) {
	d := New(nil, refsolver.New(), Config{}, nil)
	a1 := buildArena(t)
	a2 := buildArena(t)

	require.NoError(t, d.Enqueue("inst-1", a1, 0, Heuristic))
	err := d.Enqueue("inst-2", a2, 0, SingleInstanceCP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixed strategies")
}

func TestDriverSingleInstanceCPSolvesAndMerges(t *testing.T) {
	d := New(nil, refsolver.New(), Config{TimeLimitSeconds: 1}, nil)
	a := buildArena(t)

	require.NoError(t, d.Enqueue("inst-1", a, 0, SingleInstanceCP))
	require.NoError(t, d.Run(context.Background()))

	rep := d.Document.Instances["inst-1"]
	assert.True(t, rep.Fixed)
	assert.Equal(t, "OPTIMAL_REFERENCE", rep.Solution.SolverStatus)
}

func TestDriverWarmStrategyBootstrapsBeforeSolving(t *testing.T) {
	d := New(nil, refsolver.New(), Config{TimeLimitSeconds: 1}, nil)
	a := buildArena(t)

	require.NoError(t, d.Enqueue("inst-1", a, 0, SingleInstanceCPWarm))
	require.NoError(t, d.Run(context.Background()))

	rep := d.Document.Instances["inst-1"]
	assert.True(t, rep.Fixed)
	assert.Equal(t, "OPTIMAL_REFERENCE", rep.Solution.SolverStatus)
}

func TestDriverReleaseOrderingRespectsHeapTieBreak(t *testing.T) {
	d := New(nil, refsolver.New(), Config{}, nil)
	a1 := buildArena(t, "R1", "R2")
	a2 := buildArena(t, "R1", "R2")

	require.NoError(t, d.Enqueue("first", a1, 0, Heuristic))
	require.NoError(t, d.Enqueue("second", a2, 0, Heuristic))
	require.NoError(t, d.Run(context.Background()))

	assert.Len(t, d.Document.Instances, 2)
	firstJ1 := d.Document.Instances["first"].Jobs["first-j1"]
	secondJ1 := d.Document.Instances["second"].Jobs["second-j1"]
	require.NotNil(t, firstJ1.Start)
	require.NotNil(t, secondJ1.Start)
	assert.Equal(t, 0, *firstJ1.Start, "equal release times dispatch in enqueue order, so the first instance takes R1 first")
	assert.Equal(t, 3, *secondJ1.Start)
}

// Two instances built from the same bare ids (t1, j1, ...) must not
// collide once they reach a joint all-instance solve: Enqueue rebinds
// each arena to its own composite ids before either is ever merged into
// the shared model.
func TestDriverAllInstanceCPSolvesJointlyAcrossCollidingBareIDs(t *testing.T) {
	d := New(nil, refsolver.New(), Config{TimeLimitSeconds: 1}, nil)
	a1 := buildArena(t, "R1", "R2")
	a2 := buildArena(t, "R1", "R2")

	require.NoError(t, d.Enqueue("inst-1", a1, 0, AllInstanceCP))
	require.NoError(t, d.Enqueue("inst-2", a2, 0, AllInstanceCP))
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, d.Document.Instances, 2)
	rep1 := d.Document.Instances["inst-1"]
	rep2 := d.Document.Instances["inst-2"]
	assert.True(t, rep1.Fixed)
	assert.True(t, rep2.Fixed)
	assert.Equal(t, "OPTIMAL_REFERENCE", rep1.Solution.SolverStatus)

	j1a, ok := rep1.Jobs["inst-1-j1"]
	require.True(t, ok)
	j1b, ok := rep2.Jobs["inst-2-j1"]
	require.True(t, ok)
	assert.True(t, j1a.Selected)
	assert.True(t, j1b.Selected)
}

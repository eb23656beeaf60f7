package allocator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schlixmann/ra-pst-scheduler/pkg/changeop"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

func buildArena(t *testing.T) *rapst.Arena {
	t.Helper()
	a := rapst.NewArena([]rapst.ResourceID{"R1", "R2"})
	a.AddTask("t1")
	_, err := a.AddBranch("t1-cheap", "t1", rapst.InsertBefore, nil, []rapst.JobSpec{
		{ID: "j-cheap", Resource: "R1", Cost: 10},
	})
	require.NoError(t, err)
	_, err = a.AddBranch("t1-fast", "t1", rapst.InsertBefore, nil, []rapst.JobSpec{
		{ID: "j-fast", Resource: "R2", Cost: 3},
	})
	require.NoError(t, err)
	return a
}

func TestEvaluatePicksEarliestFinish(t *testing.T) {
	a := buildArena(t)
	tl := schedule.NewTimeline()
	alloc := New(a, tl, 0)

	candidates, err := alloc.Evaluate("t1", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, rapst.BranchID("t1-fast"), candidates[0].Branch)
	assert.Equal(t, 3, candidates[0].Finish)
}

func TestAllocateTaskCommitsAndReservesTimeline(t *testing.T) {
	a := buildArena(t)
	tl := schedule.NewTimeline()
	alloc := New(a, tl, 0)
	engine := changeop.New(a)

	chosen, err := alloc.AllocateTask(engine, "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, rapst.BranchID("t1-fast"), chosen)
	assert.True(t, a.Tasks["t1"].Allocated)
	assert.True(t, a.Jobs["j-fast"].Selected)
	assert.Equal(t, 3, tl.EarliestWindow("R2", 0, 1), "R2 stays busy until the committed job ends")
}

func TestAllocateTaskSkipsBranchesBeyondHorizon(t *testing.T) {
	a := buildArena(t)
	tl := schedule.NewTimeline()
	alloc := New(a, tl, 2) // neither branch (cost 10, cost 3) fits within a horizon of 2
	engine := changeop.New(a)

	_, err := alloc.AllocateTask(engine, "t1", 0)
	require.Error(t, err)
}

func TestMeasureIsNaNUntilFullyAllocated(t *testing.T) {
	a := buildArena(t)
	assert.True(t, math.IsNaN(Measure(a)))

	tl := schedule.NewTimeline()
	alloc := New(a, tl, 0)
	engine := changeop.New(a)
	_, err := alloc.AllocateTask(engine, "t1", 0)
	require.NoError(t, err)

	assert.Equal(t, float64(3), Measure(a))
}

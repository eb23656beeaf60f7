package schedule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsResourcePool(t *testing.T) {
	doc := New([]string{"R2", "R1", "R3"})
	assert.Equal(t, []string{"R1", "R2", "R3"}, doc.Resources)
	assert.NotNil(t, doc.Instances)
}

func TestMarshalFileThenLoadFileRoundTrips(t *testing.T) {
	doc := New([]string{"R1"})
	start, end := 0, 4
	doc.Merge("inst-1", InstanceRep{
		Tasks:    map[string]TaskRep{"t1": {Branches: []string{"t1-b1"}}},
		Branches: map[string]BranchRep{"t1-b1": {Task: "t1", Jobs: []string{"j1"}, ChangeType: "insert-after", BranchCost: 4}},
		Jobs:     map[string]JobRep{"j1": {Branch: "t1-b1", Resource: "R1", Cost: 4, Selected: true, Start: &start, End: &end}},
		Fixed:    true,
		Solution: &SolutionMeta{Objective: 4, SolverStatus: "HEURISTIC"},
	})

	path := filepath.Join(t.TempDir(), "schedule.json")
	require.NoError(t, doc.MarshalFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Resources, loaded.Resources)
	require.Contains(t, loaded.Instances, "inst-1")
	assert.True(t, loaded.Instances["inst-1"].Fixed)
	require.NotNil(t, loaded.Solution)
	assert.Equal(t, 4.0, loaded.Solution.Objective)
}

func TestLoadFileMissingPathReturnsSchedulePersistenceError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestMergeKeepsHigherObjectiveSolutionAtDocumentLevel(t *testing.T) {
	doc := New([]string{"R1"})
	doc.Merge("inst-1", InstanceRep{Solution: &SolutionMeta{Objective: 5}})
	doc.Merge("inst-2", InstanceRep{Solution: &SolutionMeta{Objective: 3}})
	require.NotNil(t, doc.Solution)
	assert.Equal(t, 5.0, doc.Solution.Objective, "a lower-objective instance must not overwrite the running summary")

	doc.Merge("inst-3", InstanceRep{Solution: &SolutionMeta{Objective: 9}})
	assert.Equal(t, 9.0, doc.Solution.Objective)
}

func TestMergeReplacesInstanceRepresentationInPlace(t *testing.T) {
	doc := New([]string{"R1"})
	doc.Merge("inst-1", InstanceRep{Fixed: false})
	assert.False(t, doc.Instances["inst-1"].Fixed)

	doc.Merge("inst-1", InstanceRep{Fixed: true})
	assert.True(t, doc.Instances["inst-1"].Fixed, "re-merging the same instance id must replace, not accumulate")
	assert.Len(t, doc.Instances, 1)
}

func TestSelectedBranchesInfersFromJobSelection(t *testing.T) {
	rep := InstanceRep{
		Branches: map[string]BranchRep{
			"t1-b1": {Task: "t1", Jobs: []string{"j1"}},
			"t1-b2": {Task: "t1", Jobs: []string{"j2"}},
			"t2-b1": {Task: "t2", Jobs: nil},
		},
		Jobs: map[string]JobRep{
			"j1": {Branch: "t1-b1", Selected: true},
			"j2": {Branch: "t1-b2", Selected: false},
		},
	}
	selected := SelectedBranches(rep)
	assert.Equal(t, "t1-b1", selected["t1"])
	_, hasT2 := selected["t2"]
	assert.False(t, hasT2, "a zero-job delete-type branch cannot be inferred from job selection")
}

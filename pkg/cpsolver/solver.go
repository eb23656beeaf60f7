// Package cpsolver adapts an RA-PST arena into the constraint model
// described in spec §4.4 and hands it to a Solver. The actual CP/MIP
// engine is treated as an external collaborator outside this module's
// scope (spec §1, §9's design note): cpsolver only builds the Model and
// defines the narrow port a real engine must implement. Package refsolver
// ships one concrete, in-process Solver so the rest of the engine has
// something to run against.
package cpsolver

import (
	"context"

	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/schedule"
)

// IntervalVar is one optional or mandatory interval variable of the CP
// model: a job's [start, start+length) window, present only if its
// branch is selected (unless Mandatory, for already-fixed instances).
type IntervalVar struct {
	Job                rapst.JobID
	Branch             rapst.BranchID
	Resource           rapst.ResourceID
	Length             int
	Mandatory          bool
	MinStart           int
	StartingPointStart int // only meaningful when the model is warm-started
}

// ExclusionGroup is a cardinality constraint: exactly one interval among
// Branches' jobs may be present, mirroring rapst.Arena.ExclusionGroup.
type ExclusionGroup struct {
	Task     rapst.TaskID
	Branches []rapst.BranchID
}

// Precedence is an end_before_start edge between two job intervals,
// derived from a job's declared After list; the two jobs routinely belong
// to different branches or tasks entirely.
type Precedence struct {
	Before rapst.JobID
	After  rapst.JobID
}

// Model is the fully built CP model for one or many process instances,
// ready to hand to a Solver.
type Model struct {
	Intervals    []IntervalVar
	Exclusions   []ExclusionGroup
	Precedences  []Precedence
	Sigma        int  // slack added to fixed/mandatory intervals, spec §4.4
	Alpha        int  // symmetry-breaking coefficient, scheduling-only mode
	WarmStart    bool
}

// Solution is what a Solver returns: presence/timing for every interval
// plus the solve's metadata, already in the shape the schedule document
// wants.
type Solution struct {
	Selected map[rapst.JobID]bool
	Start    map[rapst.JobID]int
	Meta     schedule.SolutionMeta
}

// Solver is the narrow capability a real CP/MIP engine must implement.
// cpsolver never talks to a solver library directly; everything upstream
// only depends on this interface, so swapping the reference backend for a
// production solver is a one-line change at the call site.
type Solver interface {
	Solve(ctx context.Context, model Model, timeLimitSeconds float64) (Solution, error)
}

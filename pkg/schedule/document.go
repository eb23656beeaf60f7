// Package schedule defines the Schedule Document: the canonical JSON
// exchange format produced and consumed by the allocation and scheduling
// engine (spec §6). A Document is the single source of truth shared
// across process instances; the simulator driver is its sole writer and
// merges every allocation or solve result into it in memory. The driver
// does not write it to disk; MarshalFile persists it atomically, and the
// CLI calls it once after the driver run.
package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
)

// Document is the top-level schedule artifact: the resource pool shared by
// every instance, the instances themselves, and an optional solution
// summary produced by the last solve or allocation pass.
type Document struct {
	Resources []string               `json:"resources"`
	Instances map[string]InstanceRep `json:"instances"`
	Solution  *SolutionMeta          `json:"solution,omitempty"`
}

// InstanceRep is one process instance's realized RA-PST plus whatever
// scheduling state has been committed to it so far.
type InstanceRep struct {
	Tasks     map[string]TaskRep   `json:"tasks"`
	Branches  map[string]BranchRep `json:"branches"`
	Jobs      map[string]JobRep    `json:"jobs"`
	Fixed     bool                 `json:"fixed"`
	Solution  *SolutionMeta        `json:"solution,omitempty"`
}

// TaskRep lists a task's admissible branches in enumeration order.
type TaskRep struct {
	Branches []string `json:"branches"`
	Deleted  bool     `json:"deleted"`
}

// BranchRep is one branch of a task.
type BranchRep struct {
	Task       string   `json:"task"`
	Jobs       []string `json:"jobs"`
	Deletes    []string `json:"deletes,omitempty"`
	ChangeType string   `json:"change_type"`
	BranchCost int      `json:"branch_cost"`
}

// JobRep is one job within a branch, including whatever scheduling state
// has been committed for it.
type JobRep struct {
	Branch       string `json:"branch"`
	Resource     string `json:"resource"`
	Cost         int    `json:"cost"`
	After        []string `json:"after,omitempty"`
	Instance     string `json:"instance"`
	MinStartTime int    `json:"min_start_time"`
	ReleaseTime  int    `json:"release_time"`
	Selected     bool   `json:"selected"`
	Start        *int   `json:"start"`
	End          *int   `json:"end"`
}

// SolutionMeta mirrors the CP solver's solution metadata (spec §4.4),
// carried whether the solution came from the heuristic allocator or a CP
// solve so callers have one place to look.
type SolutionMeta struct {
	Objective           float64  `json:"objective"`
	OptimalityGap       *float64 `json:"optimality_gap,omitempty"`
	ComputingTimeS      float64  `json:"computing_time"`
	SolverStatus        string   `json:"solver_status"`
	Branches            int      `json:"branches,omitempty"`
	Propagations        int      `json:"propagations,omitempty"`
	TotalIntervalLength int      `json:"total_interval_length"`
	LowerBound          *float64 `json:"lower_bound,omitempty"`
}

// New returns an empty document over the given resource pool.
func New(resources []string) *Document {
	sorted := append([]string(nil), resources...)
	sort.Strings(sorted)
	return &Document{Resources: sorted, Instances: make(map[string]InstanceRep)}
}

// LoadFile reads and parses a schedule document.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	return &doc, nil
}

// MarshalFile writes the document to path atomically: it serializes to a
// temp file in the same directory, then renames over the destination, so
// a reader never observes a partially written document (spec §5, single
// writer / atomic persistence).
func (d *Document) MarshalFile(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".schedule-*.tmp")
	if err != nil {
		return &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &rapsterr.SchedulePersistenceError{Path: path, Err: err}
	}
	return nil
}

// Merge replaces instanceID's representation in place. It does not touch
// the document's resource pool, which keeps the resources the document
// was created with. The caller's solution
// metadata, if present, replaces the document-level summary only if it
// reports a worse (larger) objective than the current one, so a
// multi-instance driver's running summary always reflects the
// highest-makespan instance solved so far.
func (d *Document) Merge(instanceID string, rep InstanceRep) {
	if d.Instances == nil {
		d.Instances = make(map[string]InstanceRep)
	}
	d.Instances[instanceID] = rep
	if rep.Solution == nil {
		return
	}
	if d.Solution == nil || rep.Solution.Objective > d.Solution.Objective {
		d.Solution = rep.Solution
	}
}

// SelectedBranches returns, for every task in rep that has a selected
// branch, the task id to branch id mapping implied by its jobs' Selected
// flags: it turns a flat job-selection solution back into a branch choice
// per task.
// Branches with no jobs (e.g. a bare delete-type branch) cannot be
// inferred this way and are left out of the result; callers that need
// those must track selection explicitly at commit time.
func SelectedBranches(rep InstanceRep) map[string]string {
	out := make(map[string]string)
	for bid, b := range rep.Branches {
		for _, jid := range b.Jobs {
			if j, ok := rep.Jobs[jid]; ok && j.Selected {
				out[b.Task] = bid
				break
			}
		}
	}
	return out
}

// Package rapst holds the flat, arena-indexed representation of a
// Resource-Augmented Process Structure Tree. Every task, branch, and job
// lives in a flat map keyed by its stable id, and relationships are
// expressed as id references rather than pointers. This makes cloning an
// arena for a new process instance a matter of copying maps, not
// re-parsing or re-linking a tree (see DESIGN.md, design note on
// arena-of-structs).
package rapst

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// ResourceID, TaskID, BranchID and JobID are the stable identifiers used
// throughout the engine. Branch and job ids are composite
// ("<instance>-<task>-<branchIndex>" and "<instance>-<job>") once an arena
// has been bound to a process instance; within a template arena they are
// the bare ids assigned at construction time.
type (
	ResourceID string
	TaskID     string
	BranchID   string
	JobID      string
)

// ChangeType is the rewrite behaviour a branch requests from the
// change-operation engine when it is selected for its task.
type ChangeType string

const (
	// InsertBefore and InsertAfter name where a branch's jobs sit relative
	// to the host task. The arena holds no process tree to splice into:
	// the change-operation engine commits both kinds the same way and
	// leaves the task order unchanged.
	InsertBefore ChangeType = "insert-before"
	// InsertAfter: see InsertBefore.
	InsertAfter ChangeType = "insert-after"
	// Delete schedules the host task itself for removal, deferred until
	// Engine.Finalize.
	Delete ChangeType = "delete"
	// Replace is recognised but not implemented; selecting a branch with
	// this change type is a usage error.
	Replace ChangeType = "replace"
)

// Task is one node of the process tree: an activity with one or more
// admissible branches, at most one of which is ultimately selected.
type Task struct {
	ID       TaskID
	Branches []BranchID // enumeration order is preserved and used for composite ids

	// Deleted is set by the change-operation engine when some other
	// task's branch names this task in its Deletes list, or when this
	// task's own selected branch has ChangeType Delete and Finalize has
	// run. A deleted task is skipped by the allocator and the driver.
	Deleted bool

	// Allocated is set once a branch has been committed for this task.
	Allocated      bool
	SelectedBranch BranchID
}

// Branch is one admissible realization of a task: an ordered chain of
// jobs plus the structural edit it performs on the tree when chosen.
type Branch struct {
	ID      BranchID
	Task    TaskID
	Jobs    []JobID // left-to-right order within the branch
	Deletes []TaskID
	Change  ChangeType
}

// Cost is the branch cost: the sum of its jobs' costs. It is not cached
// because branches are small and this is only called during allocation
// and CP model construction.
func (b *Branch) Cost(a *Arena) int {
	total := 0
	for _, jid := range b.Jobs {
		if j, ok := a.Jobs[jid]; ok {
			total += j.Cost
		}
	}
	return total
}

// Job is a single resource allocation within a branch.
type Job struct {
	ID       JobID
	Branch   BranchID
	Resource ResourceID
	Cost     int
	After    []JobID // jobs that must finish before this one starts

	// Scheduling state, mutated in place as the instance is allocated.
	// This is per-instance state; it lives here rather than in a
	// separate structure because the arena itself is deep-copied per
	// instance (see Arena.Clone), so there is no aliasing risk.
	Selected      bool
	Start         *int
	End           *int
	ExpectedStart *int
	ExpectedEnd   *int
	MinStartTime  int
}

// Arena is a complete RA-PST: the set of resources, the process's tasks in
// execution order, and every branch and job reachable from them.
type Arena struct {
	Resources map[ResourceID]struct{}
	Tasks     map[TaskID]*Task
	Branches  map[BranchID]*Branch
	Jobs      map[JobID]*Job
	Order     []TaskID // process-defined task order; fixed at construction
}

// NewArena builds an empty arena over the given resource set.
func NewArena(resources []ResourceID) *Arena {
	a := &Arena{
		Resources: make(map[ResourceID]struct{}, len(resources)),
		Tasks:     make(map[TaskID]*Task),
		Branches:  make(map[BranchID]*Branch),
		Jobs:      make(map[JobID]*Job),
	}
	for _, r := range resources {
		a.Resources[r] = struct{}{}
	}
	return a
}

// AddTask registers a task in process order. Calling it twice with the
// same id is a no-op.
func (a *Arena) AddTask(id TaskID) *Task {
	if t, ok := a.Tasks[id]; ok {
		return t
	}
	t := &Task{ID: id}
	a.Tasks[id] = t
	a.Order = append(a.Order, id)
	return t
}

// JobSpec describes one job to attach to a branch being built.
type JobSpec struct {
	ID       JobID
	Resource ResourceID
	Cost     int
	After    []JobID
}

// AddBranch attaches a new branch to task, with the given jobs in
// left-to-right order, and registers it on the task's branch list.
func (a *Arena) AddBranch(id BranchID, task TaskID, change ChangeType, deletes []TaskID, jobs []JobSpec) (*Branch, error) {
	t, ok := a.Tasks[task]
	if !ok {
		return nil, fmt.Errorf("rapst: unknown task %q for branch %q", task, id)
	}
	jobIDs := make([]JobID, 0, len(jobs))
	for _, js := range jobs {
		if _, exists := a.Resources[js.Resource]; !exists {
			return nil, fmt.Errorf("rapst: branch %q job %q references unknown resource %q", id, js.ID, js.Resource)
		}
		a.Jobs[js.ID] = &Job{
			ID:       js.ID,
			Branch:   id,
			Resource: js.Resource,
			Cost:     js.Cost,
			After:    append([]JobID(nil), js.After...),
		}
		jobIDs = append(jobIDs, js.ID)
	}
	b := &Branch{ID: id, Task: task, Jobs: jobIDs, Deletes: append([]TaskID(nil), deletes...), Change: change}
	a.Branches[id] = b
	t.Branches = append(t.Branches, id)
	return b, nil
}

// Tasklist returns task ids in process order, skipping tasks already
// marked deleted.
func (a *Arena) Tasklist() []TaskID {
	out := make([]TaskID, 0, len(a.Order))
	for _, id := range a.Order {
		if t := a.Tasks[id]; t != nil && !t.Deleted {
			out = append(out, id)
		}
	}
	return out
}

// Resourcelist returns the resource ids in sorted order.
func (a *Arena) Resourcelist() []ResourceID {
	out := make([]ResourceID, 0, len(a.Resources))
	for r := range a.Resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExclusionGroup returns every branch id that is mutually exclusive with
// task's own selection: task's own branches, plus any branch elsewhere in
// the arena whose Deletes list names task. This is the set the CP
// adapter's cardinality constraint (§4.4) needs.
func (a *Arena) ExclusionGroup(task TaskID) []BranchID {
	var group []BranchID
	if t, ok := a.Tasks[task]; ok {
		group = append(group, t.Branches...)
	}
	for _, b := range a.Branches {
		if b.Task == task {
			continue
		}
		for _, d := range b.Deletes {
			if d == task {
				group = append(group, b.ID)
				break
			}
		}
	}
	return group
}

// Clone deep-copies the arena so a process template can be bound to a new,
// independently mutable instance without aliasing scheduling state across
// instances.
func (a *Arena) Clone() *Arena {
	out := &Arena{
		Resources: make(map[ResourceID]struct{}, len(a.Resources)),
		Tasks:     make(map[TaskID]*Task, len(a.Tasks)),
		Branches:  make(map[BranchID]*Branch, len(a.Branches)),
		Jobs:      make(map[JobID]*Job, len(a.Jobs)),
		Order:     append([]TaskID(nil), a.Order...),
	}
	for r := range a.Resources {
		out.Resources[r] = struct{}{}
	}
	for id, t := range a.Tasks {
		cp := *t
		cp.Branches = append([]BranchID(nil), t.Branches...)
		out.Tasks[id] = &cp
	}
	for id, b := range a.Branches {
		cp := *b
		cp.Jobs = append([]JobID(nil), b.Jobs...)
		cp.Deletes = append([]TaskID(nil), b.Deletes...)
		out.Branches[id] = &cp
	}
	for id, j := range a.Jobs {
		cp := *j
		cp.After = append([]JobID(nil), j.After...)
		if j.Start != nil {
			v := *j.Start
			cp.Start = &v
		}
		if j.End != nil {
			v := *j.End
			cp.End = &v
		}
		if j.ExpectedStart != nil {
			v := *j.ExpectedStart
			cp.ExpectedStart = &v
		}
		if j.ExpectedEnd != nil {
			v := *j.ExpectedEnd
			cp.ExpectedEnd = &v
		}
		out.Jobs[id] = &cp
	}
	return out
}

// Validate checks the §3 structural invariants: every branch references a
// known task and known resources, every Deletes and After reference
// resolves, and no task is left without at least one branch.
func (a *Arena) Validate() error {
	var result *multierror.Error
	for tid, t := range a.Tasks {
		if len(t.Branches) == 0 {
			result = multierror.Append(result, fmt.Errorf("task %q has no admissible branches", tid))
		}
	}
	for bid, b := range a.Branches {
		if _, ok := a.Tasks[b.Task]; !ok {
			result = multierror.Append(result, fmt.Errorf("branch %q references unknown task %q", bid, b.Task))
		}
		for _, d := range b.Deletes {
			if _, ok := a.Tasks[d]; !ok {
				result = multierror.Append(result, fmt.Errorf("branch %q deletes unknown task %q", bid, d))
			}
		}
		for _, jid := range b.Jobs {
			j, ok := a.Jobs[jid]
			if !ok {
				result = multierror.Append(result, fmt.Errorf("branch %q references unknown job %q", bid, jid))
				continue
			}
			if _, ok := a.Resources[j.Resource]; !ok {
				result = multierror.Append(result, fmt.Errorf("job %q references unknown resource %q", jid, j.Resource))
			}
			for _, after := range j.After {
				if _, ok := a.Jobs[after]; !ok {
					result = multierror.Append(result, fmt.Errorf("job %q has unknown predecessor %q", jid, after))
				}
			}
		}
	}
	return result.ErrorOrNil()
}

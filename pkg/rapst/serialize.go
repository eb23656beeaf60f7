package rapst

import "fmt"

// CompositeTaskBranchID builds the "<instance>-<task>-<branchIndex>" id a
// branch carries once it is bound to a process instance.
func CompositeTaskBranchID(instance string, task TaskID, branchIndex int) BranchID {
	return BranchID(fmt.Sprintf("%s-%s-%d", instance, task, branchIndex))
}

// CompositeJobID builds the "<instance>-<job>" id a job carries once it is
// bound to a process instance.
func CompositeJobID(instance string, job JobID) JobID {
	return JobID(fmt.Sprintf("%s-%s", instance, job))
}

// Rebind rewrites every id in the arena to its instance-qualified
// composite form. It is applied once, when an arena is admitted to a
// concrete process instance (simulator.Driver.Enqueue calls it).
func (a *Arena) Rebind(instance string) {
	newTasks := make(map[TaskID]*Task, len(a.Tasks))
	for id, t := range a.Tasks {
		bareID := id
		t.ID = TaskID(fmt.Sprintf("%s-%s", instance, bareID))
		for i, bid := range t.Branches {
			t.Branches[i] = a.renameBranch(bid, instance, bareID, i)
		}
		if t.SelectedBranch != "" {
			t.SelectedBranch = a.renamedBranchID(t.SelectedBranch, instance)
		}
		newTasks[t.ID] = t
	}
	a.Tasks = newTasks

	newOrder := make([]TaskID, len(a.Order))
	for i, id := range a.Order {
		newOrder[i] = TaskID(fmt.Sprintf("%s-%s", instance, id))
	}
	a.Order = newOrder

	newBranches := make(map[BranchID]*Branch, len(a.Branches))
	for _, b := range a.Branches {
		newBranches[b.ID] = b
	}
	a.Branches = newBranches

	newJobs := make(map[JobID]*Job, len(a.Jobs))
	for id, j := range a.Jobs {
		nid := CompositeJobID(instance, id)
		j.ID = nid
		for i, after := range j.After {
			j.After[i] = CompositeJobID(instance, after)
		}
		newJobs[nid] = j
	}
	a.Jobs = newJobs
}

// renameBranch renames a branch (and its jobs and task/deletes back
// references) in place and returns the new id. It is only ever called
// once per branch during Rebind, keyed off the branch's position in its
// task's original branch list.
func (a *Arena) renameBranch(old BranchID, instance string, bareTask TaskID, branchIndex int) BranchID {
	b, ok := a.Branches[old]
	if !ok {
		return old
	}
	nb := CompositeTaskBranchID(instance, bareTask, branchIndex)
	b.ID = nb
	b.Task = TaskID(fmt.Sprintf("%s-%s", instance, bareTask))
	for i, jid := range b.Jobs {
		if j, ok := a.Jobs[jid]; ok {
			j.Branch = nb
		}
		b.Jobs[i] = CompositeJobID(instance, jid)
	}
	for i, d := range b.Deletes {
		b.Deletes[i] = TaskID(fmt.Sprintf("%s-%s", instance, d))
	}
	return nb
}

func (a *Arena) renamedBranchID(old BranchID, instance string) BranchID {
	if b, ok := a.Branches[old]; ok {
		return b.ID
	}
	return old
}

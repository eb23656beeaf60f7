package rapst

import "github.com/schlixmann/ra-pst-scheduler/pkg/schedule"

// ToInstanceRep flattens the arena into the wire representation written
// to the schedule document. instance is the process instance id already
// bound into every composite id via Rebind.
func (a *Arena) ToInstanceRep(instance string) schedule.InstanceRep {
	rep := schedule.InstanceRep{
		Tasks:    make(map[string]schedule.TaskRep, len(a.Tasks)),
		Branches: make(map[string]schedule.BranchRep, len(a.Branches)),
		Jobs:     make(map[string]schedule.JobRep, len(a.Jobs)),
	}
	for id, t := range a.Tasks {
		branches := make([]string, len(t.Branches))
		for i, b := range t.Branches {
			branches[i] = string(b)
		}
		rep.Tasks[string(id)] = schedule.TaskRep{Branches: branches, Deleted: t.Deleted}
	}
	for id, b := range a.Branches {
		jobs := make([]string, len(b.Jobs))
		for i, j := range b.Jobs {
			jobs[i] = string(j)
		}
		deletes := make([]string, len(b.Deletes))
		for i, d := range b.Deletes {
			deletes[i] = string(d)
		}
		rep.Branches[string(id)] = schedule.BranchRep{
			Task:       string(b.Task),
			Jobs:       jobs,
			Deletes:    deletes,
			ChangeType: string(b.Change),
			BranchCost: b.Cost(a),
		}
	}
	for id, j := range a.Jobs {
		after := make([]string, len(j.After))
		for i, aft := range j.After {
			after[i] = string(aft)
		}
		rep.Jobs[string(id)] = schedule.JobRep{
			Branch:       string(j.Branch),
			Resource:     string(j.Resource),
			Cost:         j.Cost,
			After:        after,
			Instance:     instance,
			MinStartTime: j.MinStartTime,
			Selected:     j.Selected,
			Start:        j.Start,
			End:          j.End,
		}
	}
	return rep
}

package simulator

import (
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
)

// AllocationType is one of the five strategy tags a queued instance may
// carry (spec §4.5). A single driver run never mixes them.
type AllocationType string

const (
	Heuristic            AllocationType = "HEURISTIC"
	SingleInstanceCP      AllocationType = "SINGLE_INSTANCE_CP"
	SingleInstanceCPWarm  AllocationType = "SINGLE_INSTANCE_CP_WARM"
	AllInstanceCP         AllocationType = "ALL_INSTANCE_CP"
	AllInstanceCPWarm     AllocationType = "ALL_INSTANCE_CP_WARM"
)

// QueueItem is one unit of dispatch work: either a whole process instance
// (CP strategies solve it in one shot) or an instance paused between two
// tasks (the heuristic strategy re-enqueues itself one task at a time, the
// Go equivalent of the original simulator's update_task_queue re-sort).
type QueueItem struct {
	Instance    string
	Arena       *rapst.Arena
	Pending     []rapst.TaskID
	ReleaseTime int
	Strategy    AllocationType

	seq   int
	index int
}

// priorityQueue implements container/heap.Interface, ordering items by
// release time and, for ties, by insertion order (spec §5(ii)).
type priorityQueue []*QueueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].ReleaseTime != pq[j].ReleaseTime {
		return pq[i].ReleaseTime < pq[j].ReleaseTime
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*QueueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

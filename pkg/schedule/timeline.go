package schedule

import "sort"

// interval is a half-open [Start, End) busy window on a resource.
type interval struct {
	Start, End int
}

// Timeline tracks, per resource, the busy windows implied by every
// selected job in a document. The heuristic allocator queries it to find
// the earliest feasible start for a new job; the driver rebuilds it from
// the document whenever it resumes allocation.
type Timeline struct {
	busy map[string][]interval
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{busy: make(map[string][]interval)}
}

// BuildTimeline reconstructs a timeline from every selected job already
// committed across a document's instances.
func BuildTimeline(doc *Document) *Timeline {
	t := NewTimeline()
	for _, rep := range doc.Instances {
		for _, j := range rep.Jobs {
			if j.Selected && j.Start != nil && j.End != nil {
				t.Reserve(j.Resource, *j.Start, *j.End)
			}
		}
	}
	return t
}

// Reserve marks [start, end) busy on resource.
func (t *Timeline) Reserve(resource string, start, end int) {
	if end <= start {
		return
	}
	windows := append(t.busy[resource], interval{start, end})
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	t.busy[resource] = windows
}

// EarliestWindow returns the earliest start >= earliestStart at which a
// job of the given duration can run on resource without overlapping any
// reserved window. It scans the sorted busy list and returns the first
// gap that fits, a straightforward greedy packing appropriate to a
// single-pass heuristic allocator.
func (t *Timeline) EarliestWindow(resource string, earliestStart, duration int) int {
	if duration <= 0 {
		return earliestStart
	}
	windows := t.busy[resource]
	candidate := earliestStart
	for _, w := range windows {
		if candidate+duration <= w.Start {
			return candidate
		}
		if candidate < w.End {
			candidate = w.End
		}
	}
	return candidate
}

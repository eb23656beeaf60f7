// Package inputdoc parses the flat JSON ingestion format the CLI accepts
// in place of the original's XML process/resource description parser
// (out of scope for this module per spec §1: the actual process/resource
// parser is an external collaborator). This mirrors the flat
// {tasks, resources, branches} shape builder.py's get_ilp_rep produced
// for downstream consumption, extended with per-instance release times
// so a single file can seed a whole driver run.
package inputdoc

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schlixmann/ra-pst-scheduler/pkg/rapst"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
)

// JobSpec is one job within a branch, as given in the input file.
type JobSpec struct {
	ID       string   `json:"id"`
	Resource string   `json:"resource"`
	Cost     int      `json:"cost"`
	After    []string `json:"after,omitempty"`
}

// BranchSpec is one admissible branch of a task.
type BranchSpec struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	ChangeType string    `json:"change_type"`
	Deletes    []string  `json:"deletes,omitempty"`
	Jobs       []JobSpec `json:"jobs"`
}

// InstanceSpec is one process instance to be enqueued with the driver.
type InstanceSpec struct {
	ID          string       `json:"id"`
	ReleaseTime int          `json:"release_time"`
	Strategy    string       `json:"strategy,omitempty"`
	Tasks       []string     `json:"tasks"`
	Branches    []BranchSpec `json:"branches"`
}

// Document is the top-level input file: the shared resource pool plus
// every process instance to be scheduled against it.
type Document struct {
	Resources []string       `json:"resources"`
	Instances []InstanceSpec `json:"instances"`
}

// Load reads and parses an input document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rapsterr.ParseError{Path: path, Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &rapsterr.ParseError{Path: path, Err: err}
	}
	return &doc, nil
}

// Arena builds a rapst.Arena from one instance spec over doc's shared
// resource pool.
func (doc *Document) Arena(inst InstanceSpec) (*rapst.Arena, error) {
	resources := make([]rapst.ResourceID, len(doc.Resources))
	for i, r := range doc.Resources {
		resources[i] = rapst.ResourceID(r)
	}
	a := rapst.NewArena(resources)
	for _, tid := range inst.Tasks {
		a.AddTask(rapst.TaskID(tid))
	}
	for _, b := range inst.Branches {
		jobs := make([]rapst.JobSpec, len(b.Jobs))
		for i, j := range b.Jobs {
			after := make([]rapst.JobID, len(j.After))
			for k, dep := range j.After {
				after[k] = rapst.JobID(dep)
			}
			jobs[i] = rapst.JobSpec{ID: rapst.JobID(j.ID), Resource: rapst.ResourceID(j.Resource), Cost: j.Cost, After: after}
		}
		deletes := make([]rapst.TaskID, len(b.Deletes))
		for i, d := range b.Deletes {
			deletes[i] = rapst.TaskID(d)
		}
		change := rapst.ChangeType(b.ChangeType)
		if change == "" {
			change = rapst.InsertBefore
		}
		if _, err := a.AddBranch(rapst.BranchID(b.ID), rapst.TaskID(b.Task), change, deletes, jobs); err != nil {
			return nil, fmt.Errorf("inputdoc: instance %s: %w", inst.ID, err)
		}
	}
	if err := a.Validate(); err != nil {
		return nil, &rapsterr.InvalidRAPSTError{Err: fmt.Errorf("instance %s: %w", inst.ID, err)}
	}
	return a, nil
}

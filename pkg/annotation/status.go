package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/menta2k/cvatkit/pkg/types"
)

// JobStatusFile is the conventional name of the side channel next to annotations.xml
const JobStatusFile = "job_status.json"

// LoadJobStatus decodes a JSON list of job status records
func LoadJobStatus(r io.Reader) ([]types.JobStatus, error) {
	var list []types.JobStatus
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	if list == nil {
		list = []types.JobStatus{}
	}
	return list, nil
}

// LoadJobStatusFile reads a job status file
func LoadJobStatusFile(path string) ([]types.JobStatus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job status: %w", err)
	}
	defer f.Close()
	return LoadJobStatus(f)
}

// SaveJobStatusFile writes list as indented JSON
func SaveJobStatusFile(path string, list []types.JobStatus) error {
	if list == nil {
		list = []types.JobStatus{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write job status: %w", err)
	}
	return nil
}

// WithJobStatus attaches a job status list and returns the document
func (d *Document) WithJobStatus(list []types.JobStatus) *Document {
	d.JobStatus = list
	return d
}

// HasJobStatus reports whether job status has been attached
func (d *Document) HasJobStatus() bool {
	return d.JobStatus != nil
}

// TaskStatus maps job id to state for every job of the task.
// The map is empty when no status is loaded.
func (d *Document) TaskStatus(taskID string) map[int]string {
	out := make(map[int]string)
	for _, s := range d.JobStatus {
		if s.TaskID == taskID {
			out[s.JobID] = s.State
		}
	}
	return out
}

// CompletedTasks returns the status records whose state is completed
func (d *Document) CompletedTasks() []types.JobStatus {
	out := []types.JobStatus{}
	for _, s := range d.JobStatus {
		if s.Completed() {
			out = append(out, s)
		}
	}
	return out
}

// CompletedTaskIDs returns the distinct ids of tasks with a completed job,
// in order of first appearance
func (d *Document) CompletedTaskIDs() []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, s := range d.CompletedTasks() {
		if !seen[s.TaskID] {
			seen[s.TaskID] = true
			out = append(out, s.TaskID)
		}
	}
	return out
}

// ImagesFromCompletedTasks returns, in document order, the images that
// belong to a completed task
func (d *Document) ImagesFromCompletedTasks() []*ImageAnnotation {
	completed := make(map[string]bool)
	for _, id := range d.CompletedTaskIDs() {
		completed[id] = true
	}
	out := []*ImageAnnotation{}
	for _, img := range d.Images {
		if img.TaskID != nil && completed[*img.TaskID] {
			out = append(out, img)
		}
	}
	return out
}

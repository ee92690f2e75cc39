package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoJobID is returned when a task URL carries no numeric path segment
var ErrNoJobID = errors.New("no job id in task url")

// Point is a single vertex in image pixel coordinates
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Attribute is a name/value pair attached to a shape. Names are not unique.
type Attribute struct {
	Name  string `json:"name" msgpack:"name"`
	Value string `json:"value" msgpack:"value"`
}

// LabelAttribute describes an attribute declared on a project label
type LabelAttribute struct {
	Name         string  `json:"name" msgpack:"name"`
	Mutable      *string `json:"mutable,omitempty" msgpack:"mutable,omitempty"`
	InputType    *string `json:"input_type,omitempty" msgpack:"input_type,omitempty"`
	DefaultValue *string `json:"default_value,omitempty" msgpack:"default_value,omitempty"`
	Values       *string `json:"values,omitempty" msgpack:"values,omitempty"`
}

// Label is a project label definition
type Label struct {
	Name       string           `json:"name" msgpack:"name"`
	Color      string           `json:"color" msgpack:"color"`
	Type       string           `json:"type" msgpack:"type"`
	Attributes []LabelAttribute `json:"attributes" msgpack:"attributes"`
}

// Project holds the project metadata of an annotation export.
// Created and Updated are kept verbatim.
type Project struct {
	ID      string  `json:"id" msgpack:"id"`
	Name    string  `json:"name" msgpack:"name"`
	Created string  `json:"created" msgpack:"created"`
	Updated string  `json:"updated" msgpack:"updated"`
	Labels  []Label `json:"labels" msgpack:"labels"`
}

// Task is a task of the project together with its job URL
type Task struct {
	TaskID string  `json:"task_id" msgpack:"task_id"`
	URL    string  `json:"url" msgpack:"url"`
	Name   *string `json:"name,omitempty" msgpack:"name,omitempty"`
}

// JobID returns the last path segment of the task URL that is an unsigned integer
func (t Task) JobID() (string, error) {
	parts := strings.Split(strings.TrimRight(t.URL, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if isDigits(parts[i]) {
			return parts[i], nil
		}
	}
	return "", fmt.Errorf("task %s: %w: %q", t.TaskID, ErrNoJobID, t.URL)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// JobStatus is one record of the job status side-channel file
type JobStatus struct {
	TaskID   string  `json:"task_id" msgpack:"task_id"`
	JobID    int     `json:"job_id" msgpack:"job_id"`
	TaskName string  `json:"task_name" msgpack:"task_name"`
	Stage    string  `json:"stage" msgpack:"stage"`
	State    string  `json:"state" msgpack:"state"`
	Assignee *string `json:"assignee,omitempty" msgpack:"assignee,omitempty"`
}

// StateCompleted is the job state that marks a job as done
const StateCompleted = "completed"

// Completed reports whether the job has been completed
func (s JobStatus) Completed() bool {
	return s.State == StateCompleted
}

// NormalizedBox is a bounding box with coordinates relative to the image size, in [0,1]
type NormalizedBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one object reported by a vision model
type Detection struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Box        NormalizedBox `json:"box"`
}

// DetectionResult is the parsed answer of a vision model for one image.
// Tags apply to the image as a whole.
type DetectionResult struct {
	Objects     []Detection `json:"objects"`
	Tags        []string    `json:"tags"`
	Description string      `json:"description"`
}

// StringPtr returns a pointer to s, for filling optional fields
func StringPtr(s string) *string {
	return &s
}

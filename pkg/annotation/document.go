// Package annotation implements the annotation document exchanged with CVAT:
// project metadata, tasks, per image shapes and the optional job status
// side channel. Documents are read from and written to the CVAT XML format.
//
// A Document is not safe for concurrent mutation.
package annotation

import (
	"fmt"

	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

const (
	// DefaultVersion is written when a document is created from scratch
	DefaultVersion = "1.1"
	// DefaultLinkHost is the host used for deep links unless LinkHost is set
	DefaultLinkHost = "app.cvat.ai"
)

// Document is a whole annotation export
type Document struct {
	Version string             `msgpack:"version"`
	Project types.Project      `msgpack:"project"`
	Tasks   []types.Task       `msgpack:"tasks"`
	Images  []*ImageAnnotation `msgpack:"images"`

	// JobStatus is loaded from a separate file and is nil when unknown
	JobStatus []types.JobStatus `msgpack:"job_status"`

	// LinkHost overrides DefaultLinkHost
	LinkHost string `msgpack:"-"`
}

// New creates an empty document for project
func New(project types.Project) *Document {
	return &Document{Version: DefaultVersion, Project: project}
}

// AddImage appends an image. The name must be set and the size positive.
func (d *Document) AddImage(img *ImageAnnotation) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	if img.Name == "" {
		return missing("image", "name")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("image %q: invalid size %dx%d", img.Name, img.Width, img.Height)
	}
	d.Images = append(d.Images, img)
	return nil
}

// AddTask appends a task. Task ids are unique within a document.
func (d *Document) AddTask(task types.Task) error {
	if task.TaskID == "" {
		return missing("task", "id")
	}
	for _, t := range d.Tasks {
		if t.TaskID == task.TaskID {
			return &AmbiguousError{Kind: "task", Key: task.TaskID, Matches: 2}
		}
	}
	d.Tasks = append(d.Tasks, task)
	return nil
}

// Task returns the task with the given id
func (d *Document) Task(taskID string) (types.Task, error) {
	for _, t := range d.Tasks {
		if t.TaskID == taskID {
			return t, nil
		}
	}
	return types.Task{}, &NotFoundError{Kind: "task", Key: taskID}
}

// Label returns the project label called name
func (d *Document) Label(name string) (types.Label, error) {
	var found []types.Label
	for _, l := range d.Project.Labels {
		if l.Name == name {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return types.Label{}, &NotFoundError{Kind: "label", Key: name}
	case 1:
		return found[0], nil
	default:
		return types.Label{}, &AmbiguousError{Kind: "label", Key: name, Matches: len(found)}
	}
}

// Image finds an image by file name. Directories are ignored. When no
// basename matches exactly, a unique match on the name without extension
// is accepted.
func (d *Document) Image(name string) (*ImageAnnotation, error) {
	return findImage(d.Images, name, false)
}

// findImage looks name up in images. With first set, several matches resolve
// to the earliest one instead of an AmbiguousError.
func findImage(images []*ImageAnnotation, name string, first bool) (*ImageAnnotation, error) {
	want := basename(name)
	match := func(key func(string) string, v string) ([]*ImageAnnotation, error) {
		var found []*ImageAnnotation
		for _, img := range images {
			if key(img.Name) == v {
				found = append(found, img)
			}
		}
		if len(found) > 1 && !first {
			return nil, &AmbiguousError{Kind: "image", Key: name, Matches: len(found)}
		}
		return found, nil
	}

	found, err := match(basename, want)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		if found, err = match(stem, stem(want)); err != nil {
			return nil, err
		}
	}
	if len(found) == 0 {
		return nil, &NotFoundError{Kind: "image", Key: name}
	}
	return found[0], nil
}

// AddShape appends s to the image called imageName
func (d *Document) AddShape(imageName string, s shape.Shape) error {
	img, err := d.Image(imageName)
	if err != nil {
		return err
	}
	return img.Add(s)
}

// AddMask appends a mask to the image called imageName
func (d *Document) AddMask(imageName string, m *shape.Mask) error {
	return d.AddShape(imageName, m)
}

// AddTag appends a tag to the image called imageName
func (d *Document) AddTag(imageName string, t *shape.Tag) error {
	return d.AddShape(imageName, t)
}

// ImagesInTask returns the images of a task in document order
func (d *Document) ImagesInTask(taskID string) []*ImageAnnotation {
	var out []*ImageAnnotation
	for _, img := range d.Images {
		if img.InTask(taskID) {
			out = append(out, img)
		}
	}
	return out
}

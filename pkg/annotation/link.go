package annotation

import (
	"fmt"
	"slices"
	"strings"
)

// LinkTemplate is the job deep link format: host, task id, job id and frame index
const LinkTemplate = "https://%s/tasks/%s/jobs/%s?frame=%d"

// FrameIndex returns the position of the named image among the images of its
// task, ordered by name. It also returns the owning task id. When several
// images share the basename, as happens across tasks of a project export, the
// first one in name order is used.
func (d *Document) FrameIndex(imageName string) (int, string, error) {
	sorted := slices.Clone(d.Images)
	slices.SortStableFunc(sorted, func(a, b *ImageAnnotation) int {
		return strings.Compare(a.Name, b.Name)
	})

	target, err := findImage(sorted, imageName, true)
	if err != nil {
		return 0, "", err
	}
	if target.TaskID == nil {
		return 0, "", &NotFoundError{Kind: "task for image", Key: target.Name}
	}
	taskID := *target.TaskID

	frame := 0
	for _, img := range sorted {
		if img == target {
			break
		}
		if img.InTask(taskID) {
			frame++
		}
	}
	return frame, taskID, nil
}

// CreateLink builds the deep link that opens the named image in its job
func (d *Document) CreateLink(imageName string) (string, error) {
	frame, taskID, err := d.FrameIndex(imageName)
	if err != nil {
		return "", fmt.Errorf("create link for %q: %w", imageName, err)
	}
	task, err := d.Task(taskID)
	if err != nil {
		return "", fmt.Errorf("create link for %q: %w", imageName, err)
	}
	jobID, err := task.JobID()
	if err != nil {
		return "", fmt.Errorf("create link for %q: %w", imageName, &NotFoundError{Kind: "job id for task", Key: taskID, Err: err})
	}

	host := d.LinkHost
	if host == "" {
		host = DefaultLinkHost
	}
	return fmt.Sprintf(LinkTemplate, host, taskID, jobID, frame), nil
}

package types

import (
	"errors"
	"testing"
)

func TestTaskJobID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://app.cvat.ai/api/jobs/103", "103"},
		{"https://app.cvat.ai/api/jobs/103/", "103"},
		{"https://app.cvat.ai/tasks/55/jobs/520016", "520016"},
		{"https://app.cvat.ai/api/jobs/77/annotations", "77"},
	}

	for _, tc := range cases {
		got, err := Task{TaskID: "1", URL: tc.url}.JobID()
		if err != nil {
			t.Fatalf("JobID(%q) failed: %v", tc.url, err)
		}
		if got != tc.want {
			t.Errorf("JobID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestTaskJobIDMissing(t *testing.T) {
	for _, url := range []string{"", "https://app.cvat.ai/api/jobs/", "https://example.com/a-1/b2"} {
		_, err := Task{TaskID: "9", URL: url}.JobID()
		if !errors.Is(err, ErrNoJobID) {
			t.Errorf("JobID(%q): expected ErrNoJobID, got %v", url, err)
		}
	}
}

func TestJobStatusCompleted(t *testing.T) {
	if !(JobStatus{State: "completed"}).Completed() {
		t.Error("completed state should report Completed")
	}
	if (JobStatus{State: "in_progress"}).Completed() {
		t.Error("in_progress state should not report Completed")
	}
}

package cvatkit

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/menta2k/cvatkit/pkg/annotation"
	"github.com/menta2k/cvatkit/pkg/maskio"
	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

// createTestDataset writes a small export into a temporary directory
func createTestDataset(t *testing.T, withStatus bool) string {
	t.Helper()
	dir := t.TempDir()

	doc := annotation.New(types.Project{
		ID:     "7",
		Name:   "roads",
		Labels: []types.Label{{Name: "crack", Color: "#ff0000", Type: "any"}},
	})
	if err := doc.AddTask(types.Task{TaskID: "1", URL: "https://app.cvat.ai/api/jobs/103"}); err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"b.jpg", "a.jpg"} {
		img := &annotation.ImageAnnotation{ID: string(rune('0' + i)), Name: name, TaskID: types.StringPtr("1"), Width: 64, Height: 48}
		if err := doc.AddImage(img); err != nil {
			t.Fatal(err)
		}
	}
	if err := doc.WriteFile(filepath.Join(dir, AnnotationsFile)); err != nil {
		t.Fatal(err)
	}

	if withStatus {
		status := []types.JobStatus{{TaskID: "1", JobID: 103, TaskName: "batch", Stage: "acceptance", State: "completed"}}
		if err := annotation.SaveJobStatusFile(filepath.Join(dir, annotation.JobStatusFile), status); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestOpen(t *testing.T) {
	ds, err := Open(createTestDataset(t, false))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(ds.Document.Images) != 2 {
		t.Errorf("Expected 2 images, got %d", len(ds.Document.Images))
	}
	if ds.Document.HasJobStatus() {
		t.Error("Expected no job status without job_status.json")
	}

	link, err := ds.Link("a.jpg")
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if want := "https://app.cvat.ai/tasks/1/jobs/103?frame=0"; link != want {
		t.Errorf("Link = %s, want %s", link, want)
	}
}

func TestOpenWithJobStatus(t *testing.T) {
	ds, err := Open(createTestDataset(t, true))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ids := ds.Document.CompletedTaskIDs()
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("CompletedTaskIDs = %v", ids)
	}
	if n := len(ds.Document.ImagesFromCompletedTasks()); n != 2 {
		t.Errorf("Expected 2 images from completed tasks, got %d", n)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Expected error for directory without annotations.xml")
	}
	if _, err := OpenFiles(filepath.Join(createTestDataset(t, false), AnnotationsFile), "/nonexistent/job_status.json"); err == nil {
		t.Error("Expected error for missing job status file")
	}
}

func TestAddMaskFileAndSave(t *testing.T) {
	dir := createTestDataset(t, true)
	ds, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	seg := rle.NewBitmap(48, 64)
	for y := 10; y < 14; y++ {
		for x := 20; x < 25; x++ {
			seg.Set(y, x, true)
		}
	}
	codec := maskio.New()
	maskPath := filepath.Join(t.TempDir(), "mask.png")
	if err := codec.SaveMask(seg, maskPath); err != nil {
		t.Fatal(err)
	}
	ds.SetMaskCodec(codec)

	meta := shape.Meta{Label: "crack", Source: "file"}
	if err := ds.AddMaskFile("a.jpg", meta, maskPath); err != nil {
		t.Fatalf("AddMaskFile failed: %v", err)
	}
	if err := ds.AddMaskFile("missing.jpg", meta, maskPath); !errors.Is(err, annotation.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	out := t.TempDir()
	if err := ds.SaveTo(out); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	reopened, err := Open(out)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	img, err := reopened.Document.Image("a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Masks) != 1 {
		t.Fatalf("Expected 1 mask, got %d", len(img.Masks))
	}
	m := img.Masks[0]
	if m.Top != 10 || m.Left != 20 || m.Height != 4 || m.Width != 5 {
		t.Errorf("Unexpected mask geometry %+v", m)
	}
	if !reopened.Document.HasJobStatus() {
		t.Error("Expected job status to be saved")
	}
}

func TestAddMaskFileTooLarge(t *testing.T) {
	ds, err := Open(createTestDataset(t, false))
	if err != nil {
		t.Fatal(err)
	}

	seg := rle.NewBitmap(100, 100)
	seg.Set(90, 90, true)
	maskPath := filepath.Join(t.TempDir(), "big.png")
	if err := maskio.New().SaveMask(seg, maskPath); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddMaskFile("a.jpg", shape.Meta{Label: "crack"}, maskPath); err == nil {
		t.Error("Expected error for mask outside the image")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %s, want %s", GetVersion(), Version)
	}
}

// Package cvatkit opens CVAT annotation exports and works with them as a whole.
//
// A dataset directory holds annotations.xml and, optionally, the job status
// side channel job_status.json written next to it:
//
//	ds, err := cvatkit.Open("export/")
//	if err != nil {
//		log.Fatal(err)
//	}
//	link, err := ds.Link("frame_000123.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(link)
//
// The packages below do the work:
//
//   - pkg/annotation: document model, XML codec, deep links and job status
//   - pkg/shape: the shape variants and their projections
//   - pkg/rle: run-length mask codec
//   - pkg/maskio: mask rasters on disk
//   - pkg/render: review overlays
//   - pkg/prelabel: vision model pre-annotation
package cvatkit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/cvatkit/pkg/annotation"
	"github.com/menta2k/cvatkit/pkg/maskio"
	"github.com/menta2k/cvatkit/pkg/shape"
)

// Version of the cvatkit library
const Version = "0.3.0"

// AnnotationsFile is the file name of the XML export inside a dataset directory
const AnnotationsFile = "annotations.xml"

// Dataset is an annotation document bound to the directory it was read from
type Dataset struct {
	Dir      string
	Document *annotation.Document

	masks *maskio.Codec
}

// Open reads <dir>/annotations.xml and <dir>/job_status.json when present
func Open(dir string) (*Dataset, error) {
	statusPath := filepath.Join(dir, annotation.JobStatusFile)
	if _, err := os.Stat(statusPath); errors.Is(err, os.ErrNotExist) {
		statusPath = ""
	}
	return OpenFiles(filepath.Join(dir, AnnotationsFile), statusPath)
}

// OpenFiles reads an annotation export and an optional job status file.
// An empty jobStatusPath leaves the job status unknown.
func OpenFiles(annotationsPath, jobStatusPath string) (*Dataset, error) {
	doc, err := annotation.ParseFile(annotationsPath)
	if err != nil {
		return nil, err
	}
	if jobStatusPath != "" {
		list, err := annotation.LoadJobStatusFile(jobStatusPath)
		if err != nil {
			return nil, err
		}
		doc.WithJobStatus(list)
	}
	return &Dataset{
		Dir:      filepath.Dir(annotationsPath),
		Document: doc,
		masks:    maskio.New(),
	}, nil
}

// SetMaskCodec replaces the codec used by AddMaskFile
func (ds *Dataset) SetMaskCodec(c *maskio.Codec) {
	ds.masks = c
}

// Link returns the deep link into the annotation tool for an image
func (ds *Dataset) Link(imageName string) (string, error) {
	return ds.Document.CreateLink(imageName)
}

// AddMaskFile reads a mask raster and attaches it to the image called imageName
func (ds *Dataset) AddMaskFile(imageName string, meta shape.Meta, path string) error {
	img, err := ds.Document.Image(imageName)
	if err != nil {
		return err
	}
	m, err := ds.masks.MaskFromFile(meta, path)
	if err != nil {
		return err
	}
	if m.Top+m.Height > img.Height || m.Left+m.Width > img.Width {
		return fmt.Errorf("mask %s exceeds image %s (%dx%d)", path, img.Name, img.Width, img.Height)
	}
	return img.Add(m)
}

// Save writes the dataset back to its directory
func (ds *Dataset) Save() error {
	return ds.SaveTo(ds.Dir)
}

// SaveTo writes annotations.xml, and job_status.json when job status is
// known, into dir
func (ds *Dataset) SaveTo(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	if err := ds.Document.WriteFile(filepath.Join(dir, AnnotationsFile)); err != nil {
		return err
	}
	if ds.Document.HasJobStatus() {
		return annotation.SaveJobStatusFile(filepath.Join(dir, annotation.JobStatusFile), ds.Document.JobStatus)
	}
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

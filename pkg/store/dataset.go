package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DatasetFile is one file of a dataset directory
type DatasetFile struct {
	Name        string
	ContentType string
	Optional    bool
}

// DatasetFiles lists what PushDataset and PullDataset transfer
var DatasetFiles = []DatasetFile{
	{Name: "annotations.xml", ContentType: "application/xml"},
	{Name: "job_status.json", ContentType: "application/json", Optional: true},
}

// PushDataset uploads the dataset files of dir below prefix and returns the
// keys written. Optional files that do not exist are skipped.
func PushDataset(ctx context.Context, s Store, dir, prefix string) ([]string, error) {
	var keys []string
	for _, f := range DatasetFiles {
		local := filepath.Join(dir, f.Name)
		if _, err := os.Stat(local); err != nil {
			if f.Optional && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return keys, fmt.Errorf("failed to read %s: %w", local, err)
		}
		key := Key(prefix, f.Name)
		if err := s.Put(ctx, local, key, f.ContentType); err != nil {
			return keys, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// PullDataset downloads the dataset files stored below prefix into dir and
// returns the local paths written
func PullDataset(ctx context.Context, s Store, prefix, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	var paths []string
	for _, f := range DatasetFiles {
		local := filepath.Join(dir, f.Name)
		key := Key(prefix, f.Name)
		if err := s.Get(ctx, key, local); err != nil {
			if f.Optional && errors.Is(err, ErrNotFound) {
				continue
			}
			return paths, fmt.Errorf("failed to download %s: %w", key, err)
		}
		paths = append(paths, local)
	}
	return paths, nil
}

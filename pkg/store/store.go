// Package store publishes dataset files to, and fetches them from, a local
// directory or an S3 compatible bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// Store moves files between the local disk and a storage backend.
// Keys are slash separated.
type Store interface {
	Put(ctx context.Context, localPath, key, contentType string) error
	Get(ctx context.Context, key, localPath string) error
}

// Config selects and configures a backend
type Config struct {
	Backend   string // local or minio
	Root      string // local backend directory
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New creates the store described by cfg
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		if cfg.Root == "" {
			return nil, fmt.Errorf("store root is required for the local backend")
		}
		return &Dir{Root: cfg.Root}, nil
	case "minio", "s3":
		return NewMinIO(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use local or minio)", cfg.Backend)
	}
}

// Key joins parts into an object key
func Key(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}

// Dir stores objects as files below Root
type Dir struct {
	Root string
}

func (d *Dir) path(key string) (string, error) {
	p := filepath.Join(d.Root, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the store root", key)
	}
	return p, nil
}

// Put copies localPath to key
func (d *Dir) Put(ctx context.Context, localPath, key, contentType string) error {
	dst, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return copyFile(ctx, localPath, dst)
}

// Get copies key to localPath
func (d *Dir) Get(ctx context.Context, key, localPath string) error {
	src, err := d.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return copyFile(ctx, src, localPath)
}

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

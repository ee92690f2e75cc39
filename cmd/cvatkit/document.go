package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/menta2k/cvatkit/internal/config"
	"github.com/menta2k/cvatkit/internal/utils"
	"github.com/menta2k/cvatkit/pkg/annotation"
	"github.com/menta2k/cvatkit/pkg/types"
)

const snapshotExt = ".msgpack"

// loadDocument reads the export named by --annotations together with its job status
func loadDocument(cfg *config.Config) (*annotation.Document, error) {
	path := viper.GetString("annotations")

	var doc *annotation.Document
	if strings.EqualFold(filepath.Ext(path), snapshotExt) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		if doc, err = annotation.DecodeSnapshot(data); err != nil {
			return nil, err
		}
	} else {
		var err error
		if doc, err = annotation.ParseFile(path); err != nil {
			return nil, err
		}
	}

	statusPath := viper.GetString("job-status")
	if statusPath == "" {
		candidate := filepath.Join(filepath.Dir(path), annotation.JobStatusFile)
		if utils.FileExists(candidate) {
			statusPath = candidate
		}
	}
	if statusPath != "" {
		list, err := annotation.LoadJobStatusFile(statusPath)
		if err != nil {
			return nil, err
		}
		doc.WithJobStatus(list)
	}

	doc.LinkHost = cfg.Link.Host
	return doc, nil
}

// loadOrCreateDocument is loadDocument that starts an empty document when the
// export does not exist yet
func loadOrCreateDocument(cfg *config.Config) (*annotation.Document, error) {
	path := viper.GetString("annotations")
	if !utils.FileExists(path) {
		log.Printf("%s not found, starting a new document", path)
		doc := annotation.New(types.Project{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))})
		doc.LinkHost = cfg.Link.Host
		return doc, nil
	}
	return loadDocument(cfg)
}

// saveDocument writes doc as XML, or as a msgpack snapshot when format says so
func saveDocument(doc *annotation.Document, path, format string) error {
	if format == "" {
		format = "xml"
		if strings.EqualFold(filepath.Ext(path), snapshotExt) {
			format = "msgpack"
		}
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	switch format {
	case "xml":
		if err := doc.WriteFile(path); err != nil {
			return err
		}
	case "msgpack":
		data, err := annotation.EncodeSnapshot(doc)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q (use xml or msgpack)", format)
	}

	if info, err := os.Stat(path); err == nil {
		log.Printf("wrote %s (%s)", path, utils.FormatFileSize(info.Size()))
	}
	return nil
}

// Package storage persists recording folders: YAML metadata next to a
// SQLite database holding the timestamp-indexed samples and any markers.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// File names inside a recording folder.
const (
	MetadataFile = "recording_info.yaml"
	DataFile     = "data.db"
	EDFFile      = "data.edf"
)

// Store reads and writes recording folders.
type Store interface {
	WriteMetadata(folder string, md *common.RecordingMetadata) error
	ReadMetadata(folder string) (*common.RecordingMetadata, error)
	WriteRecording(folder string, rec *common.Recording) error
	ReadRecording(folder string) (*common.Recording, error)
	WriteMarkers(folder string, markers []common.Marker) error
	ReadMarkers(folder string) ([]common.Marker, error)
}

// FolderStore is the on-disk Store.
type FolderStore struct {
	logger logging.Logger
}

// NewFolderStore creates a folder store. A nil logger uses the default.
func NewFolderStore(logger logging.Logger) *FolderStore {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "folder_store"})
	}
	return &FolderStore{logger: logger}
}

// WriteMetadata replaces the folder's metadata file atomically.
func (s *FolderStore) WriteMetadata(folder string, md *common.RecordingMetadata) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return storageErr("failed to encode metadata", err)
	}

	path := filepath.Join(folder, MetadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return storageErr("failed to write metadata", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return storageErr("failed to replace metadata", err)
	}

	s.logger.Debug("metadata written", logging.Fields{
		"folder": folder,
		"final":  md.Final(),
	})
	return nil
}

// ReadMetadata loads the folder's metadata file.
func (s *FolderStore) ReadMetadata(folder string) (*common.RecordingMetadata, error) {
	data, err := os.ReadFile(filepath.Join(folder, MetadataFile))
	if err != nil {
		return nil, storageErr("failed to read metadata", err)
	}

	var md common.RecordingMetadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, common.NewError("storage", common.ErrCodeKindMismatch, "metadata file is malformed", err)
	}
	return &md, nil
}

// WriteRecording writes the samples database. It refuses to replace an
// existing one.
func (s *FolderStore) WriteRecording(folder string, rec *common.Recording) error {
	if err := rec.Validate(); err != nil {
		return common.NewError("storage", common.ErrCodeInvalidArgument, "invalid recording", err)
	}

	path := filepath.Join(folder, DataFile)
	if _, err := os.Stat(path); err == nil {
		return common.NewError("storage", common.ErrCodeAlreadyExists,
			fmt.Sprintf("%s already exists", path), nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return storageErr("failed to inspect data file", err)
	}

	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.writeRecording(rec); err != nil {
		return err
	}

	s.logger.Debug("recording written", logging.Fields{
		"folder":   folder,
		"samples":  rec.Len(),
		"channels": len(rec.Channels),
	})
	return nil
}

// ReadRecording loads the samples database.
func (s *FolderStore) ReadRecording(folder string) (*common.Recording, error) {
	db, err := openExistingDB(filepath.Join(folder, DataFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return db.readRecording()
}

// WriteMarkers replaces the markers stored with a recording.
func (s *FolderStore) WriteMarkers(folder string, markers []common.Marker) error {
	db, err := openExistingDB(filepath.Join(folder, DataFile))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.writeMarkers(markers); err != nil {
		return err
	}

	s.logger.Debug("markers written", logging.Fields{"folder": folder, "markers": len(markers)})
	return nil
}

// ReadMarkers returns the stored markers in insertion order.
func (s *FolderStore) ReadMarkers(folder string) ([]common.Marker, error) {
	db, err := openExistingDB(filepath.Join(folder, DataFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return db.readMarkers()
}

func storageErr(msg string, cause error) error {
	return common.NewError("storage", common.ErrCodeStorage, msg, cause)
}

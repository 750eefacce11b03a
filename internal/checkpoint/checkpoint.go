// Package checkpoint persists migration progress so interrupted runs can resume.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cartbridge/cartbridge/internal/errors"
)

// Checkpoint is the persisted cursor and counters for one migration job.
// It is written after every processed record, so a crash loses at most the
// record that was in flight.
type Checkpoint struct {
	LastSourceID   uint64 `json:"last_source_id"`
	Processed      int    `json:"processed"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	ImagesUploaded int    `json:"images_uploaded"`
	ImagesFailed   int    `json:"images_failed"`
}

// Load reads a checkpoint from disk. A missing file yields a zero checkpoint,
// which starts the migration from the beginning of the source.
func Load(path string) (Checkpoint, error) {
	var cp Checkpoint

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cp, nil
		}
		return cp, errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Context("path", path).
			Build()
	}

	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Context("path", path).
			Build()
	}

	return cp, nil
}

// Persist writes the checkpoint to disk synchronously. The write goes to a
// temporary file first and is renamed into place so a crash mid-write never
// leaves a truncated checkpoint behind.
func Persist(path string, cp Checkpoint) error {
	dirPath := filepath.Dir(path)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Context("path", dirPath).
			Build()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Build()
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Context("path", tempFile).
			Build()
	}

	if err := os.Rename(tempFile, path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil && !os.IsNotExist(removeErr) {
			// Leave the temp file for inspection, renaming already failed
			_ = removeErr
		}
		return errors.New(err).
			Component("checkpoint").
			Category(errors.CategoryCheckpoint).
			Context("path", path).
			Build()
	}

	return nil
}

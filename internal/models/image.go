package models

import (
	"fmt"
	"maps"
	"path/filepath"
	"time"

	"github.com/desertthunder/pngx/internal/shared"
)

// ImageRecord is the indexed metadata of one image file.
type ImageRecord struct {
	id          string
	sequence    int
	fileName    string
	filePath    string
	description string
	metadata    map[string]string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewImageRecord creates a record for the file at path. The file name is derived from path.
func NewImageRecord(path, description string, metadata map[string]string) *ImageRecord {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &ImageRecord{
		fileName:    filepath.Base(path),
		filePath:    path,
		description: description,
		metadata:    metadata,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (r *ImageRecord) ID() string { return r.id }

func (r *ImageRecord) Sequence() int { return r.sequence }

func (r *ImageRecord) FileName() string { return r.fileName }

func (r *ImageRecord) FilePath() string { return r.filePath }

func (r *ImageRecord) Description() string { return r.description }

// Metadata returns a copy of the flattened chunk metadata.
func (r *ImageRecord) Metadata() map[string]string { return maps.Clone(r.metadata) }

func (r *ImageRecord) CreatedAt() time.Time { return r.createdAt }

func (r *ImageRecord) UpdatedAt() time.Time { return r.updatedAt }

func (r *ImageRecord) DeletedAt() *time.Time { return r.deletedAt }

func (r *ImageRecord) SetID(id string) { r.id = id }

func (r *ImageRecord) SetSequence(seq int) { r.sequence = seq }

func (r *ImageRecord) SetDescription(d string) { r.description = d }

func (r *ImageRecord) SetCreatedAt(t time.Time) { r.createdAt = t }

func (r *ImageRecord) SetUpdatedAt(t time.Time) { r.updatedAt = t }

func (r *ImageRecord) SetDeletedAt(t *time.Time) { r.deletedAt = t }

func (r *ImageRecord) SetMetadata(m map[string]string) {
	if m == nil {
		m = map[string]string{}
	}
	r.metadata = m
}

// Validate checks that the record has an id and a file path.
func (r *ImageRecord) Validate() error {
	switch {
	case r.id == "":
		return fmt.Errorf("%w: image id is required", shared.ErrInvalidInput)
	case r.filePath == "":
		return fmt.Errorf("%w: image file path is required", shared.ErrInvalidInput)
	case r.fileName == "" || r.fileName == "." || r.fileName == string(filepath.Separator):
		return fmt.Errorf("%w: image file name is required", shared.ErrInvalidInput)
	}
	return nil
}

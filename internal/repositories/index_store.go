package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/png"
	"github.com/desertthunder/pngx/internal/shared"
)

// IndexStore implements tasks.ImageStore using ImageRepository.
//
// Saving a path that is already indexed refreshes the stored row.
type IndexStore struct {
	repo *ImageRepository
}

// NewIndexStore creates a new IndexStore with the given repository
func NewIndexStore(repo *ImageRepository) *IndexStore {
	return &IndexStore{repo: repo}
}

// SaveImage stores the metadata extracted from the file at path.
func (s *IndexStore) SaveImage(path string, md png.Metadata) error {
	record := models.NewImageRecord(path, md.Description(), md.Strings())

	if err := s.repo.Create(record); err != nil {
		return fmt.Errorf("failed to index %s: %w", path, err)
	}
	return nil
}

// ForgetImage soft-deletes the record for path. A path that was never indexed is not an error.
func (s *IndexStore) ForgetImage(path string) error {
	record, err := s.repo.GetByPath(path)
	if errors.Is(err, shared.ErrImageNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.Delete(record.ID())
}

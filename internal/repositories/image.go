package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/shared"
)

const imageColumns = `id, sequence, file_name, file_path, description, metadata, created_at, updated_at, deleted_at`

// ImageRepository implements [models.Repository] for [models.ImageRecord] persistence.
type ImageRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.ImageRecord] = (*ImageRepository)(nil)

// NewImageRepository creates a new [ImageRepository] with the given database connection
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create stores an image, keyed by its file path.
//
// Indexing a path that is already stored refreshes the existing row instead
// of failing: its metadata, description and updated_at are replaced and a
// soft delete is undone. The id, sequence and creation time of the stored
// row are copied back into image.
func (r *ImageRepository) Create(image *models.ImageRecord) error {
	sequence, err := NextSequence(r.db, "images")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	image.SetID(shared.GenerateID())
	image.SetSequence(sequence)

	if err := image.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	metadata, err := json.Marshal(image.Metadata())
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO images (id, sequence, file_name, file_path, description, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_name = excluded.file_name,
			description = excluded.description,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query, image.ID(), sequence, image.FileName(), image.FilePath(),
		image.Description(), string(metadata), image.CreatedAt(), image.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to upsert image: %w", err)
	}

	var (
		id        string
		seq       int
		createdAt time.Time
	)
	err = r.db.QueryRow("SELECT id, sequence, created_at FROM images WHERE file_path = ?", image.FilePath()).
		Scan(&id, &seq, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to read stored image: %w", err)
	}

	image.SetID(id)
	image.SetSequence(seq)
	image.SetCreatedAt(createdAt)
	image.SetDeletedAt(nil)
	return nil
}

// Get retrieves an image by ID, excluding soft-deleted images
func (r *ImageRepository) Get(id string) (*models.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = ? AND deleted_at IS NULL`

	image, err := scanImage(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrImageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	return image, nil
}

// GetByPath retrieves an image by its file path, excluding soft-deleted images
func (r *ImageRepository) GetByPath(path string) (*models.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE file_path = ? AND deleted_at IS NULL`

	image, err := scanImage(r.db.QueryRow(query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrImageNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	return image, nil
}

// Update modifies the description and metadata of an existing image
func (r *ImageRepository) Update(image *models.ImageRecord) error {
	if err := image.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	metadata, err := json.Marshal(image.Metadata())
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	now := time.Now()
	image.SetUpdatedAt(now)

	query := `
		UPDATE images
		SET description = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, image.Description(), string(metadata), now, image.ID())
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	return expectRow(result, image.ID())
}

// Delete soft-deletes an image by ID
func (r *ImageRepository) Delete(id string) error {
	query := `
		UPDATE images
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return expectRow(result, id)
}

// List retrieves all images matching the given criteria, excluding soft-deleted images.
//
// Supported criteria: "file_name" (exact), "dir" (file path prefix) and "limit" (int).
func (r *ImageRepository) List(criteria map[string]any) ([]*models.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE deleted_at IS NULL`
	args := []any{}

	if name, ok := criteria["file_name"].(string); ok && name != "" {
		query += " AND file_name = ?"
		args = append(args, name)
	}

	if dir, ok := criteria["dir"].(string); ok && dir != "" {
		query += ` AND file_path LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(dir)+"%")
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	return collectImages(rows)
}

// Count returns the number of images that are not soft-deleted.
func (r *ImageRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM images WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.ImageRecord, error) {
	var (
		id          string
		sequence    int
		fileName    string
		filePath    string
		description string
		metadata    string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &fileName, &filePath, &description, &metadata, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	md := map[string]string{}
	if err := json.Unmarshal([]byte(metadata), &md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of %s: %w", filePath, err)
	}

	image := models.NewImageRecord(filePath, description, md)
	image.SetID(id)
	image.SetSequence(sequence)
	image.SetCreatedAt(createdAt)
	image.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		image.SetDeletedAt(&deletedAt.Time)
	}
	return image, nil
}

func collectImages(rows *sql.Rows) ([]*models.ImageRecord, error) {
	var images []*models.ImageRecord
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return images, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", shared.ErrImageNotFound, id)
	}
	return nil
}

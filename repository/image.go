package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
	"gorm.io/gorm"
)

type ImageRepository struct {
	database Database
}

func NewImageRepository(database Database) *ImageRepository {
	return &ImageRepository{database: database}
}

// Create inserts a single row. CreatedAt is set here when zero, truncated to
// the precision postgres stores so cursors built from it round-trip.
func (r *ImageRepository) Create(ctx context.Context, image *entity.Image) error {
	db, err := r.database.DB(ctx)
	if err != nil {
		return err
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if err := db.Create(image).Error; err != nil {
		return r.persistenceError("failed to insert image", err)
	}
	return nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Image, error) {
	db, err := r.database.DB(ctx)
	if err != nil {
		return nil, err
	}
	var image entity.Image
	if err := db.Where("id = ?", id).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("image not found", err)
		}
		return nil, r.persistenceError("failed to load image", err)
	}
	return &image, nil
}

// ListConfirmed returns up to limit CONFIRMED images, newest first with id
// as tie-break, starting strictly after the cursor when one is given.
func (r *ImageRepository) ListConfirmed(ctx context.Context, limit int, after *Cursor) ([]entity.Image, error) {
	db, err := r.database.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("status = ?", entity.ImageStatusConfirmed)
	if after != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	images := make([]entity.Image, 0, limit)
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, r.persistenceError("failed to list images", err)
	}
	return images, nil
}

// Confirm moves a PENDING image to CONFIRMED. The boolean is false when the
// image was already confirmed, in which case nothing is written.
func (r *ImageRepository) Confirm(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Image, bool, error) {
	db, err := r.database.DB(ctx)
	if err != nil {
		return nil, false, err
	}

	confirmedAt := at.UTC().Truncate(time.Microsecond)
	result := db.Model(&entity.Image{}).
		Where("id = ? AND status = ?", id, entity.ImageStatusPending).
		Updates(map[string]interface{}{
			"status":       entity.ImageStatusConfirmed,
			"confirmed_at": confirmedAt,
		})
	if result.Error != nil {
		return nil, false, r.persistenceError("failed to confirm image", result.Error)
	}

	image, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return image, result.RowsAffected > 0, nil
}

func (r *ImageRepository) persistenceError(message string, err error) error {
	r.database.HandleError(err)
	return utils.NewPersistenceError(message, err)
}

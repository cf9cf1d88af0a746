package repository

import (
	"context"

	"github.com/tnqbao/gau-image-service/infra"
	"gorm.io/gorm"
)

// Database hands out the shared gorm handle and learns about failures so a
// rejected credential can be rotated out.
type Database interface {
	DB(ctx context.Context) (*gorm.DB, error)
	HandleError(err error)
}

type Repository struct {
	ImageRepo *ImageRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return &Repository{
		ImageRepo: NewImageRepository(infra.Postgres),
	}
}

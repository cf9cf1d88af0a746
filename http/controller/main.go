package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/repository"
	"github.com/tnqbao/gau-image-service/service"
)

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Identity, error)
}

type ImageStore interface {
	Create(ctx context.Context, image *entity.Image) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Image, error)
	ListConfirmed(ctx context.Context, limit int, after *repository.Cursor) ([]entity.Image, error)
}

type GalleryCache interface {
	GalleryVersion(ctx context.Context) (int64, error)
	GetGalleryPage(ctx context.Context, version int64, limit int, cursor string, dest interface{}) (bool, error)
	SetGalleryPage(ctx context.Context, version int64, limit int, cursor string, page interface{}, ttl time.Duration) error
}

type Confirmer interface {
	Confirm(ctx context.Context, id uuid.UUID) (*entity.Image, bool, error)
}

// Controller holds the collaborators behind each route. Cache may be nil.
type Controller struct {
	Config       *config.Config
	Logger       *infra.LoggerClient
	Verifier     IdentityVerifier
	Images       ImageStore
	Storage      infra.UploadIssuer
	Cache        GalleryCache
	Confirmation Confirmer
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}

	ctrl := &Controller{
		Config:       config,
		Logger:       infra.Logger,
		Verifier:     infra.Identity,
		Images:       repo.ImageRepo,
		Storage:      infra.Storage,
		Confirmation: service.InitConfirmationService(infra, repo),
	}
	if infra.Redis != nil {
		ctrl.Cache = infra.Redis
	}
	return ctrl
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/infra/produce"
	"github.com/tnqbao/gau-image-service/repository"
)

type ImageConfirmer interface {
	Confirm(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Image, bool, error)
}

type GalleryInvalidator interface {
	InvalidateGallery(ctx context.Context) error
}

type ConfirmedPublisher interface {
	PublishImageConfirmed(ctx context.Context, msg produce.ImageConfirmedMessage) error
}

// ConfirmationService is the single PENDING to CONFIRMED transition, shared
// by the signed callback and the storage event consumer.
type ConfirmationService struct {
	images    ImageConfirmer
	cache     GalleryInvalidator
	publisher ConfirmedPublisher
	logger    *infra.LoggerClient
	now       func() time.Time
}

// NewConfirmationService accepts nil cache and publisher.
func NewConfirmationService(images ImageConfirmer, cache GalleryInvalidator, publisher ConfirmedPublisher, logger *infra.LoggerClient) *ConfirmationService {
	return &ConfirmationService{
		images:    images,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func InitConfirmationService(in *infra.Infra, repo *repository.Repository) *ConfirmationService {
	var cache GalleryInvalidator
	if in.Redis != nil {
		cache = in.Redis
	}
	var publisher ConfirmedPublisher
	if in.Produce != nil {
		publisher = in.Produce.ImageService
	}
	return NewConfirmationService(repo.ImageRepo, cache, publisher, in.Logger)
}

// Confirm reports whether this call performed the transition. Cache and
// event failures are logged; the row is already committed by then.
func (s *ConfirmationService) Confirm(ctx context.Context, id uuid.UUID) (*entity.Image, bool, error) {
	image, changed, err := s.images.Confirm(ctx, id, s.now())
	if err != nil {
		return nil, false, err
	}
	if !changed {
		s.logger.InfoWithContextf(ctx, "[Confirm] Image %s already confirmed", id)
		return image, false, nil
	}

	s.logger.InfoWithContextf(ctx, "[Confirm] Image %s confirmed", id)

	if s.cache != nil {
		if err := s.cache.InvalidateGallery(ctx); err != nil {
			s.logger.WarningWithContextf(ctx, "[Confirm] Failed to invalidate gallery cache: %v", err)
		}
	}

	if s.publisher != nil {
		msg := produce.ImageConfirmedMessage{
			ImageID:      image.ID.String(),
			OwnerSubject: image.OwnerSubject,
			StorageKey:   image.StorageKey,
		}
		if image.ConfirmedAt != nil {
			msg.ConfirmedAt = *image.ConfirmedAt
		}
		if err := s.publisher.PublishImageConfirmed(ctx, msg); err != nil {
			s.logger.WarningWithContextf(ctx, "[Confirm] Failed to publish confirmation for %s: %v", id, err)
		}
	}

	return image, true, nil
}

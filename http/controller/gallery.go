package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/http/controller/dto"
	"github.com/tnqbao/gau-image-service/repository"
	"github.com/tnqbao/gau-image-service/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const defaultPageSize = 20

// ListGallery serves CONFIRMED images to any authenticated caller, newest
// first, with storage keys rewritten to CDN URLs.
func (ctrl *Controller) ListGallery(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ListGallery")
	defer span.End()

	env := ctrl.Config.EnvConfig
	limit, err := parseLimit(c.Query("limit"), env.Gallery.PageSize, env.Gallery.MaxPageSize)
	if err != nil {
		utils.AbortWithError(c, err)
		return
	}

	cursor := c.Query("cursor")
	var after *repository.Cursor
	if cursor != "" {
		if after, err = repository.DecodeCursor(cursor); err != nil {
			utils.AbortWithError(c, err)
			return
		}
	}

	cdnDomain, err := env.RequireCDNDomain()
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Gallery] CDN domain is not configured")
		utils.AbortWithError(c, err)
		return
	}

	// The cache is skipped for this request if its version cannot be read.
	cache := ctrl.Cache
	var version int64
	if cache != nil {
		if version, err = cache.GalleryVersion(ctx); err != nil {
			ctrl.Logger.WarningWithContextf(ctx, "[Gallery] Cache version read failed: %v", err)
			cache = nil
		}
	}

	if cache != nil {
		var cached dto.GalleryResponseDTO
		hit, err := cache.GetGalleryPage(ctx, version, limit, cursor, &cached)
		if err != nil {
			ctrl.Logger.WarningWithContextf(ctx, "[Gallery] Cache read failed: %v", err)
		} else if hit {
			span.SetAttributes(attribute.Bool("gallery.cache_hit", true))
			galleryCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache_hit", true)))
			utils.JSON200(c, cached)
			return
		}
	}

	// One extra row tells us whether another page exists.
	images, err := ctrl.Images.ListConfirmed(ctx, limit+1, after)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Gallery] Failed to list images")
		span.RecordError(err)
		span.SetStatus(codes.Error, "list")
		utils.AbortWithError(c, err)
		return
	}

	page := buildGalleryPage(images, limit, cdnDomain)

	if cache != nil {
		if err := cache.SetGalleryPage(ctx, version, limit, cursor, page, env.Gallery.CacheTTL); err != nil {
			ctrl.Logger.WarningWithContextf(ctx, "[Gallery] Cache write failed: %v", err)
		}
	}

	galleryCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache_hit", false)))
	utils.JSON200(c, page)
}

func buildGalleryPage(images []entity.Image, limit int, cdnDomain string) dto.GalleryResponseDTO {
	page := dto.GalleryResponseDTO{Images: make([]dto.GalleryImageDTO, 0, len(images))}
	if len(images) > limit {
		images = images[:limit]
		page.NextCursor = repository.CursorFor(images[limit-1]).Encode()
	}
	for _, image := range images {
		// Only CONFIRMED rows are ever listed.
		if image.Status != entity.ImageStatusConfirmed {
			continue
		}
		page.Images = append(page.Images, dto.GalleryImageDTO{
			ID:          image.ID.String(),
			URL:         "https://" + cdnDomain + "/" + image.StorageKey,
			Title:       image.Title,
			Description: image.Description,
			CreatedAt:   image.CreatedAt.UTC(),
		})
	}
	return page
}

func parseLimit(raw string, pageSize, maxPageSize int) (int, error) {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if raw == "" {
		return pageSize, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxPageSize {
		return 0, utils.NewValidationError("limit must be between 1 and "+strconv.Itoa(maxPageSize), err)
	}
	return limit, nil
}

package controller

import (
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/http/controller/dto"
	"github.com/tnqbao/gau-image-service/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultUploadURLTTL = 5 * time.Minute

func (ctrl *Controller) SubmitImage(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "SubmitImage")
	defer span.End()

	identity, ok := utils.IdentityFromContext(ctx)
	if !ok {
		utils.JSON401(c, "unauthorized")
		return
	}

	var req dto.SubmitImageRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctrl.Logger.WarningWithContextf(ctx, "[Submit] Invalid request payload: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	title, description, err := normalizeSubmission(req)
	if err != nil {
		ctrl.Logger.WarningWithContextf(ctx, "[Submit] Rejected submission: %v", err)
		utils.AbortWithError(c, err)
		return
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		utils.AbortWithError(c, utils.NewValidationError("contentType must be an image type", nil))
		return
	}

	id := uuid.New()
	key := entity.StorageKeyFor(id)
	span.SetAttributes(attribute.String("image.id", id.String()))

	ttl := ctrl.Config.EnvConfig.Storage.UploadURLTTL
	if ttl <= 0 {
		ttl = defaultUploadURLTTL
	}

	// No row is written unless the upload target was issued.
	target, err := ctrl.Storage.IssueUploadTarget(ctx, key, ttl, contentType)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Submit] Failed to issue upload target for %s", key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload target")
		utils.AbortWithError(c, err)
		return
	}

	image := &entity.Image{
		ID:           id,
		OwnerSubject: identity.Subject,
		StorageKey:   key,
		Title:        title,
		Description:  description,
		Status:       entity.ImageStatusPending,
	}
	if err := ctrl.Images.Create(ctx, image); err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Submit] Failed to persist image %s", id)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		utils.AbortWithError(c, err)
		return
	}

	submissionCounter.Add(ctx, 1)
	ctrl.Logger.InfoWithContextf(ctx, "[Submit] Image %s pending upload for subject %s", id, identity.Subject)

	utils.JSON200(c, dto.SubmitImageResponseDTO{
		ID:           id.String(),
		UploadTarget: target,
		Title:        title,
		Description:  description,
	})
}

// normalizeSubmission trims both fields, applies the defaults and enforces
// the length bounds.
func normalizeSubmission(req dto.SubmitImageRequestDTO) (string, string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = entity.DefaultTitle
	}
	if utf8.RuneCountInString(title) > entity.MaxTitleLength {
		return "", "", utils.NewValidationError("title is too long", nil)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = entity.DefaultDescription
	}
	if utf8.RuneCountInString(description) > entity.MaxDescriptionLength {
		return "", "", utils.NewValidationError("description is too long", nil)
	}
	return title, description, nil
}

// ConfirmImage is the signed storage callback. It only confirms images whose
// object is present in storage.
func (ctrl *Controller) ConfirmImage(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ConfirmImage")
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid image id")
		return
	}
	span.SetAttributes(attribute.String("image.id", id.String()))

	image, err := ctrl.Images.FindByID(ctx, id)
	if err != nil {
		if !utils.IsKind(err, utils.KindNotFound) {
			ctrl.Logger.ErrorWithContextf(ctx, err, "[Confirm] Failed to load image %s", id)
		}
		utils.AbortWithError(c, err)
		return
	}
	if image.Status == entity.ImageStatusConfirmed {
		utils.JSON200(c, dto.ConfirmImageResponseDTO{ID: id.String(), Status: image.Status})
		return
	}

	exists, err := ctrl.Storage.ObjectExists(ctx, image.StorageKey)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Confirm] Failed to check object %s", image.StorageKey)
		utils.AbortWithError(c, err)
		return
	}
	if !exists {
		ctrl.Logger.WarningWithContextf(ctx, "[Confirm] Object %s not uploaded yet", image.StorageKey)
		utils.AbortWithError(c, utils.NewConflictError("object has not been uploaded", nil))
		return
	}

	image, changed, err := ctrl.Confirmation.Confirm(ctx, id)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Confirm] Failed to confirm image %s", id)
		span.RecordError(err)
		utils.AbortWithError(c, err)
		return
	}
	if changed {
		confirmationCounter.Add(ctx, 1)
	}

	utils.JSON200(c, dto.ConfirmImageResponseDTO{ID: id.String(), Status: image.Status, Confirmed: changed})
}

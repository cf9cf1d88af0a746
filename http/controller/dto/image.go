package dto

import (
	"time"

	"github.com/tnqbao/gau-image-service/entity"
)

type SubmitImageRequestDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
}

type SubmitImageResponseDTO struct {
	ID           string               `json:"id"`
	UploadTarget *entity.UploadTarget `json:"uploadTarget"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
}

type GalleryImageDTO struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GalleryResponseDTO always serializes images as an array, never null.
type GalleryResponseDTO struct {
	Images     []GalleryImageDTO `json:"images"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

type ConfirmImageResponseDTO struct {
	ID        string             `json:"id"`
	Status    entity.ImageStatus `json:"status"`
	Confirmed bool               `json:"confirmed"`
}

type HealthResponseDTO struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

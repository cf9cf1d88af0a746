package entity

import (
	"time"

	"github.com/google/uuid"
)

// ImageStatus represents the lifecycle state of an image record
type ImageStatus string

const (
	ImageStatusPending   ImageStatus = "PENDING"
	ImageStatusConfirmed ImageStatus = "CONFIRMED"
)

const (
	// StorageKeyPrefix is the object-storage folder for uploaded images
	StorageKeyPrefix = "images/"

	DefaultTitle       = "Untitled"
	DefaultDescription = ""

	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

type Image struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerSubject string      `json:"owner_subject" gorm:"type:varchar(255);not null;index;<-:create"`
	StorageKey   string      `json:"storage_key" gorm:"type:varchar(1024);not null;uniqueIndex"`
	Title        string      `json:"title" gorm:"type:varchar(200);not null"`
	Description  string      `json:"description" gorm:"type:text;not null;default:''"`
	Status       ImageStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index:idx_images_gallery,priority:1"`
	CreatedAt    time.Time   `json:"created_at" gorm:"not null;<-:create;index:idx_images_gallery,priority:2,sort:desc"`
	ConfirmedAt  *time.Time  `json:"confirmed_at,omitempty"`
}

func (Image) TableName() string {
	return "images"
}

// StorageKeyFor derives the object key from an image id.
func StorageKeyFor(id uuid.UUID) string {
	return StorageKeyPrefix + id.String()
}

// ImageIDFromStorageKey is the inverse of StorageKeyFor. Only the canonical
// key is accepted; uuid.Parse alone would also take braced, urn and
// undashed spellings that name a different object.
func ImageIDFromStorageKey(key string) (uuid.UUID, bool) {
	if len(key) <= len(StorageKeyPrefix) || key[:len(StorageKeyPrefix)] != StorageKeyPrefix {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(key[len(StorageKeyPrefix):])
	if err != nil || StorageKeyFor(id) != key {
		return uuid.Nil, false
	}
	return id, true
}

// UploadTarget is a pre-authorized single-object upload descriptor.
type UploadTarget struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

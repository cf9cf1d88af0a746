package repository

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
)

// Cursor is the keyset position of the last image on a gallery page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func CursorFor(image entity.Image) Cursor {
	return Cursor{CreatedAt: image.CreatedAt, ID: image.ID}
}

// Encode renders the cursor as opaque base64url text.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, utils.NewValidationError("invalid cursor", err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, utils.NewValidationError("invalid cursor", nil)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, utils.NewValidationError("invalid cursor", err)
	}
	imageID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid cursor", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: imageID}, nil
}

package repository

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	image := entity.Image{
		ID:        uuid.New(),
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC),
	}

	decoded, err := DecodeCursor(CursorFor(image).Encode())
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}
	if decoded.ID != image.ID || !decoded.CreatedAt.Equal(image.CreatedAt) {
		t.Errorf("decoded %+v, want %s at %v", decoded, image.ID, image.CreatedAt)
	}
}

func TestDecodeCursorRejects(t *testing.T) {
	t.Parallel()

	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	tests := map[string]string{
		"not base64":   "%%%",
		"no separator": enc("2026-03-04T05:06:07Z"),
		"bad time":     enc("yesterday|" + uuid.NewString()),
		"bad id":       enc("2026-03-04T05:06:07Z|not-a-uuid"),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(input)
			if utils.KindOf(err) != utils.KindValidation {
				t.Errorf("DecodeCursor(%q) err = %v, want ValidationError", input, err)
			}
		})
	}
}

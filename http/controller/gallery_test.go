package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/http/controller/dto"
	"github.com/tnqbao/gau-image-service/utils"
)

func gallery(t *testing.T, ctrl *Controller, query string) (*httptest.ResponseRecorder, dto.GalleryResponseDTO) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/gallery"+query, nil)
	w := httptest.NewRecorder()
	newTestEngine(ctrl, "u-42").ServeHTTP(w, req)

	var resp dto.GalleryResponseDTO
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode gallery: %v", err)
		}
	}
	return w, resp
}

func seedImage(store *fakeStore, status entity.ImageStatus, createdAt time.Time, title string) entity.Image {
	id := uuid.New()
	image := entity.Image{
		ID:          id,
		StorageKey:  entity.StorageKeyFor(id),
		Title:       title,
		Description: title + " description",
		Status:      status,
		CreatedAt:   createdAt,
	}
	store.seed(image)
	return image
}

func TestListGalleryEmpty(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedImage(store, entity.ImageStatusPending, time.Now(), "pending")

	req := httptest.NewRequest(http.MethodGet, "/v1/gallery", nil)
	w := httptest.NewRecorder()
	newTestEngine(newTestController(store, &fakeIssuer{}), "u-42").ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"images":[]}` {
		t.Errorf("body = %s, want {\"images\":[]}", got)
	}
}

func TestListGalleryOnlyConfirmedNewestFirst(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	older := seedImage(store, entity.ImageStatusConfirmed, base, "older")
	newer := seedImage(store, entity.ImageStatusConfirmed, base.Add(time.Hour), "newer")
	tieA := seedImage(store, entity.ImageStatusConfirmed, base.Add(30*time.Minute), "tie")
	tieB := seedImage(store, entity.ImageStatusConfirmed, base.Add(30*time.Minute), "tie")
	seedImage(store, entity.ImageStatusPending, base.Add(2*time.Hour), "pending")

	ctrl := newTestController(store, &fakeIssuer{})
	w, first := gallery(t, ctrl, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(first.Images) != 4 {
		t.Fatalf("images = %d, want the 4 confirmed ones", len(first.Images))
	}
	if first.Images[0].ID != newer.ID.String() || first.Images[3].ID != older.ID.String() {
		t.Errorf("order = %v, want newest first", ids(first))
	}
	tieIDs := map[string]bool{first.Images[1].ID: true, first.Images[2].ID: true}
	if !tieIDs[tieA.ID.String()] || !tieIDs[tieB.ID.String()] {
		t.Errorf("tied images not in the middle: %v", ids(first))
	}

	for _, image := range first.Images {
		if image.Title == "pending" {
			t.Error("PENDING image listed")
		}
		want := "https://cdn.example.com/images/" + image.ID
		if image.URL != want {
			t.Errorf("url = %q, want %q", image.URL, want)
		}
	}

	_, second := gallery(t, ctrl, "")
	for i := range first.Images {
		if first.Images[i].ID != second.Images[i].ID {
			t.Fatalf("order changed between calls: %v vs %v", ids(first), ids(second))
		}
	}
}

func TestListGalleryPagination(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedImage(store, entity.ImageStatusConfirmed, base.Add(time.Duration(i%3)*time.Minute), "img")
	}
	ctrl := newTestController(store, &fakeIssuer{})

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		query := "?limit=2"
		if cursor != "" {
			query += "&cursor=" + url.QueryEscape(cursor)
		}
		w, page := gallery(t, ctrl, query)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		pages++
		for _, image := range page.Images {
			if seen[image.ID] {
				t.Fatalf("image %s returned twice", image.ID)
			}
			seen[image.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		if len(page.Images) != 2 {
			t.Fatalf("non-final page has %d images", len(page.Images))
		}
		cursor = page.NextCursor
	}
	if pages != 3 || len(seen) != 5 {
		t.Errorf("pages=%d seen=%d, want 3 pages covering 5 images", pages, len(seen))
	}
}

func TestListGalleryRejectsBadQuery(t *testing.T) {
	t.Parallel()

	for _, query := range []string{"?limit=0", "?limit=-1", "?limit=abc", "?limit=51", "?cursor=!!!"} {
		store := newFakeStore()
		w, _ := gallery(t, newTestController(store, &fakeIssuer{}), query)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, w.Code)
		}
		if store.listCalls != 0 {
			t.Errorf("%s: store queried for invalid input", query)
		}
	}
}

func TestListGalleryRequiresCDNDomain(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctrl := newTestController(store, &fakeIssuer{})
	ctrl.Config.EnvConfig.CDN.Domain = ""

	w, _ := gallery(t, ctrl, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if store.listCalls != 0 {
		t.Error("store queried without CDN domain")
	}
}

func TestListGalleryPersistenceFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = utils.NewPersistenceError("db down", nil)
	w, _ := gallery(t, newTestController(store, &fakeIssuer{}), "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestListGalleryUsesCache(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedImage(store, entity.ImageStatusConfirmed, time.Now().UTC(), "cached")
	ctrl := newTestController(store, &fakeIssuer{})
	cache := &fakeCache{}
	ctrl.Cache = cache

	_, first := gallery(t, ctrl, "")
	_, second := gallery(t, ctrl, "")
	if store.listCalls != 1 {
		t.Errorf("store queried %d times, want 1 with a warm cache", store.listCalls)
	}
	if len(second.Images) != 1 || second.Images[0].ID != first.Images[0].ID {
		t.Errorf("cached page %+v differs from %+v", second, first)
	}

	seedImage(store, entity.ImageStatusConfirmed, time.Now().UTC().Add(time.Minute), "newer")
	cache.bump()
	_, third := gallery(t, ctrl, "")
	if store.listCalls != 2 {
		t.Errorf("store queried %d times after invalidation, want 2", store.listCalls)
	}
	if len(third.Images) != 2 || third.Images[0].Title != "newer" {
		t.Errorf("page after invalidation = %+v", third)
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	if got, _ := parseLimit("", 20, 100); got != 20 {
		t.Errorf("default = %d, want 20", got)
	}
	if got, _ := parseLimit("", 0, 100); got != defaultPageSize {
		t.Errorf("unset page size = %d, want %d", got, defaultPageSize)
	}
	if got, _ := parseLimit("", 500, 100); got != 100 {
		t.Errorf("page size above max = %d, want 100", got)
	}
	if got, err := parseLimit("100", 20, 100); err != nil || got != 100 {
		t.Errorf("limit at max = %d, %v", got, err)
	}
}

func ids(page dto.GalleryResponseDTO) []string {
	out := make([]string, 0, len(page.Images))
	for _, image := range page.Images {
		out = append(out, image.ID)
	}
	return out
}

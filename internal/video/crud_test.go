package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/vidshare/vidshare/internal/validate"
)

func TestEdit_UpdatesTitleAndDescription(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectExec(`UPDATE videos SET title`).
		WithArgs("New Title", "video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE videos SET description`).
		WithArgs("new description", "video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	body := strings.NewReader(`{"title":"New Title","description":"new description"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/videos/video-1", body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEdit_EmptyTitleBecomesPlaceholder(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectExec(`UPDATE videos SET title`).
		WithArgs(validate.DefaultTitle, "video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	body := strings.NewReader(`{"title":"   "}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/videos/video-1", body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEdit_NotOwnerIsNotFound(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectExec(`UPDATE videos SET title`).
		WithArgs("Theirs", "video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	body := strings.NewReader(`{"title":"Theirs"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/videos/video-1", body))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a non-owned video, got %d", rec.Code)
	}
}

func TestEdit_EmptyBodyRejected(t *testing.T) {
	h, _ := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/videos/video-1", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty edit, got %d", rec.Code)
	}
}

func TestDelete_RemovesObjectAndRow(t *testing.T) {
	storage := &mockStorage{}
	h, mock := newTestHandler(t, storage, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectQuery(`SELECT file_key FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"file_key"}).AddRow("owner/key-1.mp4"))
	mock.ExpectExec(`DELETE FROM videos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete, "/api/videos/video-1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	storage.mu.Lock()
	deleted := append([]string(nil), storage.deletedKeys...)
	storage.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != "owner/key-1.mp4" {
		t.Errorf("expected the object to be removed, got %v", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDelete_ObjectFailureStillDeletesRow(t *testing.T) {
	storage := &mockStorage{deleteErr: errConnRefused}
	h, mock := newTestHandler(t, storage, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectQuery(`SELECT file_key FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"file_key"}).AddRow("owner/key-1.mp4"))
	mock.ExpectExec(`DELETE FROM videos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete, "/api/videos/video-1", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("row delete should proceed past a failed object delete, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDelete_NotOwned(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectQuery(`SELECT file_key FROM videos`).
		WithArgs("video-1", testUserID).
		WillReturnError(errConnRefused)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete, "/api/videos/video-1", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDownload_ReturnsPresignedURL(t *testing.T) {
	storage := &mockStorage{downloadURL: "https://store.test/signed"}
	h, mock := newTestHandler(t, storage, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectQuery(`SELECT title, file_key, content_type FROM videos`).
		WithArgs("video-1").
		WillReturnRows(pgxmock.NewRows([]string{"title", "file_key", "content_type"}).
			AddRow("Holiday", "owner/key-1.mp4", "video/mp4"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos/video-1/download", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["downloadUrl"] != "https://store.test/signed" {
		t.Errorf("unexpected download URL %q", resp["downloadUrl"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDownload_UnknownVideo(t *testing.T) {
	h, mock := newTestHandler(t, &mockStorage{}, 1<<20)
	router := newVideoRouter(h)

	mock.ExpectQuery(`SELECT title, file_key, content_type FROM videos`).
		WithArgs("missing").
		WillReturnError(errConnRefused)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos/missing/download", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestExtensionForContentType(t *testing.T) {
	cases := map[string]string{
		"video/mp4":       ".mp4",
		"video/webm":      ".webm",
		"video/quicktime": ".mov",
		"":                ".mp4",
	}
	for ct, want := range cases {
		if got := extensionForContentType(ct); got != want {
			t.Errorf("%q: expected %q, got %q", ct, want, got)
		}
	}
}

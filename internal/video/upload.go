package video

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/httputil"
	"github.com/vidshare/vidshare/internal/validate"
)

// uploadFormOverhead is headroom on top of the file cap for multipart
// boundaries and the text fields.
const uploadFormOverhead = 1 << 20

// Upload accepts a multipart video upload. Size and content type are
// validated before anything touches the network; the object is written
// first and the row inserted only after the write succeeds. If the row
// insert fails, the orphaned object is left for the reconciler to purge.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	// Cap the body before the multipart parser spools it, so an oversized
	// upload fails during the read instead of after a full transfer.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+uploadFormOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("file exceeds the maximum size of %d MB", h.maxUploadBytes/(1024*1024)))
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if msg := validate.Upload(header.Size, h.maxUploadBytes, contentType); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = validate.DefaultTitle
	}
	if msg := validate.Title(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	description := r.FormValue("description")
	if msg := validate.Description(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	key := objectKey(userID, header.Filename)
	if err := h.storage.Upload(r.Context(), key, file, contentType, header.Size); err != nil {
		slog.Error("upload: object write failed", "key", key, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to store video")
		return
	}

	var rec VideoRecord
	rec.OwnerID = &userID
	rec.Title = title
	rec.Description = description
	rec.FileKey = key
	rec.ContentType = contentType
	rec.FileSize = header.Size
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (owner_id, title, description, file_key, content_type, file_size)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, views, created_at`,
		userID, title, description, key, contentType, header.Size,
	).Scan(&rec.ID, &rec.Views, &rec.CreatedAt)
	if err != nil {
		// The object stays orphaned until a reconciliation pass removes it.
		slog.Error("upload: row insert failed after object write", "key", key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save video")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, h.toListItem(rec))
}

// objectKey builds a store key unique per upload: re-uploading the same
// file creates a new key, never overwrites an existing one.
func objectKey(userID, filename string) string {
	return fmt.Sprintf("%s/%d-%s", userID, time.Now().UnixMilli(), sanitizeKeyPart(filename))
}

func sanitizeKeyPart(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}

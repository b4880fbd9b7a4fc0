package video

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/httputil"
	"github.com/vidshare/vidshare/internal/validate"
)

type editRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Edit updates title and description, owner-only. An empty title becomes
// the placeholder instead of failing the request.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Description == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			title = validate.DefaultTitle
		}
		if msg := validate.Title(title); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		tag, err := h.db.Exec(r.Context(),
			`UPDATE videos SET title = $1, updated_at = now() WHERE id = $2 AND owner_id = $3`,
			title, videoID, userID,
		)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
			return
		}
		if tag.RowsAffected() == 0 {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
	}

	if req.Description != nil {
		if msg := validate.Description(*req.Description); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		tag, err := h.db.Exec(r.Context(),
			`UPDATE videos SET description = $1, updated_at = now() WHERE id = $2 AND owner_id = $3`,
			*req.Description, videoID, userID,
		)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
			return
		}
		if tag.RowsAffected() == 0 {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete is the owner-initiated path: confirm ownership, remove the object
// best-effort, then delete the row. The row delete proceeds even when the
// object removal fails, since a row without a retrievable object is never
// valid anyway. The reconciler's purge is the privileged path that skips
// the ownership check.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var fileKey string
	err := h.db.QueryRow(r.Context(),
		`SELECT file_key FROM videos WHERE id = $1 AND owner_id = $2`,
		videoID, userID,
	).Scan(&fileKey)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	if err := h.storage.DeleteObject(r.Context(), fileKey); err != nil {
		slog.Error("video: object delete failed, deleting row anyway", "key", fileKey, "error", err)
	}

	if _, err := h.db.Exec(r.Context(),
		`DELETE FROM videos WHERE id = $1 AND owner_id = $2`, videoID, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download hands out a short-lived presigned URL with an attachment
// disposition so the browser saves the file under its title.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var title, fileKey, contentType string
	err := h.db.QueryRow(r.Context(),
		`SELECT title, file_key, content_type FROM videos WHERE id = $1`,
		videoID,
	).Scan(&title, &fileKey, &contentType)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	filename := title + extensionForContentType(contentType)
	downloadURL, err := h.storage.GenerateDownloadURLWithDisposition(r.Context(), fileKey, filename, 1*time.Hour)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate download URL")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"downloadUrl": downloadURL})
}

func extensionForContentType(ct string) string {
	switch ct {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}

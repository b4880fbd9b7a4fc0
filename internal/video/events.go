package video

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vidshare/vidshare/internal/httputil"
)

type playbackEventRequest struct {
	Type       string  `json:"type"` // play, ended, seeked
	PlaybackID string  `json:"playbackId"`
	Position   float64 `json:"position,omitempty"`
}

type playbackEventResponse struct {
	Views   int64 `json:"views"`
	Counted bool  `json:"counted"`
}

// PlaybackEvent feeds player events into the view-count ledger. "play"
// counts the session if it has not been counted; "ended" and a seek back
// to the start reset the session so a replay counts again. Count
// persistence failures are not surfaced to the viewer.
func (h *Handler) PlaybackEvent(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var req playbackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlaybackID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "playbackId is required")
		return
	}

	switch req.Type {
	case "play":
		meta := ViewerMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
		views, counted, err := h.ledger.RegisterPlaybackStart(r.Context(), videoID, req.PlaybackID, meta)
		if err != nil {
			// Best-effort: the player keeps its rendered counter unchanged.
			httputil.WriteJSON(w, http.StatusOK, playbackEventResponse{Views: 0, Counted: false})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, playbackEventResponse{Views: views, Counted: counted})
	case "ended":
		h.ledger.RegisterPlaybackEnd(videoID, req.PlaybackID)
		w.WriteHeader(http.StatusNoContent)
	case "seeked":
		if req.Position == 0 {
			h.ledger.RegisterPlaybackEnd(videoID, req.PlaybackID)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown event type")
	}
}

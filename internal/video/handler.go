package video

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/database"
	"github.com/vidshare/vidshare/internal/geoip"
	"github.com/vidshare/vidshare/internal/httputil"
)

// ObjectStorage is the object store gateway the video package consumes.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, contentLength int64) error
	HeadObject(ctx context.Context, key string) (int64, string, error)
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
	PublicURL(key string) string
	GenerateDownloadURLWithDisposition(ctx context.Context, key string, filename string, expiry time.Duration) (string, error)
}

// trendingWindow is how far back the trending view looks.
const trendingWindow = 7 * 24 * time.Hour

type Handler struct {
	db             database.DBTX
	storage        ObjectStorage
	reconciler     *Reconciler
	ledger         *Ledger
	maxUploadBytes int64
}

func NewHandler(db database.DBTX, storage ObjectStorage, geo *geoip.Resolver, maxUploadBytes int64, probeTimeout time.Duration, maxConcurrentProbes int) *Handler {
	return &Handler{
		db:             db,
		storage:        storage,
		reconciler:     NewReconciler(db, storage, probeTimeout, maxConcurrentProbes),
		ledger:         NewLedger(db, geo),
		maxUploadBytes: maxUploadBytes,
	}
}

// Reconciler exposes the reconciler for the background sweep loop.
func (h *Handler) Reconciler() *Reconciler {
	return h.reconciler
}

type listItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	OwnerID     string `json:"ownerId"`
	Views       int64  `json:"views"`
	CreatedAt   string `json:"createdAt"`
}

type listResponse struct {
	Videos []listItem `json:"videos"`
}

// List serves the gallery views. Each request is one reconciliation pass:
// invalid rows found along the way are purged, valid ones are returned in
// the requested order.
//
// Views: home (all, newest first), explore (all, shuffled), trending
// (7-day window by views), library (owned by the session principal).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "home"
	}

	var filter Filter
	order := OrderRecent
	switch view {
	case "home":
	case "explore":
		order = OrderShuffle
	case "trending":
		filter.Within = trendingWindow
		order = OrderViews
	case "library":
		userID := auth.UserIDFromContext(r.Context())
		if userID == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "sign in to see your library")
			return
		}
		filter.OwnerID = userID
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown view")
		return
	}

	if o := r.URL.Query().Get("order"); o != "" {
		switch Order(o) {
		case OrderRecent, OrderViews, OrderShuffle:
			order = Order(o)
		default:
			httputil.WriteError(w, http.StatusBadRequest, "unknown order")
			return
		}
	}

	records, err := h.reconciler.Reconcile(r.Context(), filter, order)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		// Listing degrades to an empty gallery; the client may retry.
		httputil.WriteJSON(w, http.StatusBadGateway, listResponse{Videos: []listItem{}})
		return
	}

	items := make([]listItem, 0, len(records))
	for _, rec := range records {
		items = append(items, h.toListItem(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Videos: items})
}

func (h *Handler) toListItem(rec VideoRecord) listItem {
	ownerID := ""
	if rec.OwnerID != nil {
		ownerID = *rec.OwnerID
	}
	return listItem{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		URL:         h.storage.PublicURL(rec.FileKey),
		OwnerID:     ownerID,
		Views:       rec.Views,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
}

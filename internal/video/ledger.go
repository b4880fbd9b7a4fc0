package video

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"github.com/vidshare/vidshare/internal/database"
	"github.com/vidshare/vidshare/internal/geoip"
)

type playbackState int

const (
	stateNotCounted playbackState = iota
	stateCounted
)

const sessionIdleExpiry = time.Hour

// ViewerMeta enriches the persisted view record. All fields are optional.
type ViewerMeta struct {
	IP        string
	UserAgent string
}

type playbackSession struct {
	state     playbackState
	lastCount int64
	lastEvent time.Time
}

// Ledger counts at most one playback per playback session. A session is
// one rendered card instance, identified by a client-generated playback
// id. "play" transitions NotCounted -> Counted exactly once; "ended" or a
// seek back to the start resets the session, so a replay from the start
// counts again. That replay behavior is a product decision, not an
// accident.
//
// The persisted increment is atomic on the store side, so two concurrent
// viewers never lose an update.
type Ledger struct {
	db  database.DBTX
	geo *geoip.Resolver

	mu       sync.Mutex
	sessions map[string]*playbackSession
}

func NewLedger(db database.DBTX, geo *geoip.Resolver) *Ledger {
	l := &Ledger{
		db:       db,
		geo:      geo,
		sessions: make(map[string]*playbackSession),
	}
	go l.sweep()
	return l
}

func sessionKey(videoID, playbackID string) string {
	return videoID + "|" + playbackID
}

// RegisterPlaybackStart counts the playback if this session has not been
// counted yet. It returns the view count to render and whether this call
// performed the increment. Persistence failures roll the session back to
// NotCounted and are logged only; view counting is best-effort and never
// user-blocking.
func (l *Ledger) RegisterPlaybackStart(ctx context.Context, videoID, playbackID string, meta ViewerMeta) (views int64, counted bool, err error) {
	key := sessionKey(videoID, playbackID)

	l.mu.Lock()
	s, ok := l.sessions[key]
	if !ok {
		s = &playbackSession{}
		l.sessions[key] = s
	}
	s.lastEvent = time.Now()
	if s.state == stateCounted {
		count := s.lastCount
		l.mu.Unlock()
		return count, false, nil
	}
	s.state = stateCounted
	l.mu.Unlock()

	var newCount int64
	err = l.db.QueryRow(ctx,
		`UPDATE videos SET views = views + 1, updated_at = now() WHERE id = $1 RETURNING views`,
		videoID,
	).Scan(&newCount)
	if err != nil {
		l.mu.Lock()
		s.state = stateNotCounted
		l.mu.Unlock()
		slog.Error("ledger: failed to increment views", "video_id", videoID, "error", err)
		return 0, false, fmt.Errorf("%w: increment views: %v", ErrUpstream, err)
	}

	l.mu.Lock()
	s.lastCount = newCount
	l.mu.Unlock()

	l.recordView(ctx, videoID, meta)
	return newCount, true, nil
}

// RegisterPlaybackEnd resets the session so the next play counts again.
// Called on "ended" and on a seek back to position zero.
func (l *Ledger) RegisterPlaybackEnd(videoID, playbackID string) {
	key := sessionKey(videoID, playbackID)
	l.mu.Lock()
	if s, ok := l.sessions[key]; ok {
		s.state = stateNotCounted
		s.lastEvent = time.Now()
	}
	l.mu.Unlock()
}

// recordView persists the analytics row alongside the counter. Best
// effort: failures are logged and swallowed.
func (l *Ledger) recordView(ctx context.Context, videoID string, meta ViewerMeta) {
	hash := viewerHash(meta.IP, meta.UserAgent)
	browser, device := parseUserAgent(meta.UserAgent)
	country, city := l.geo.Lookup(meta.IP)

	if _, err := l.db.Exec(ctx,
		`INSERT INTO video_views (video_id, viewer_hash, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		videoID, hash, browser, device, country, city,
	); err != nil {
		slog.Error("ledger: failed to record view", "video_id", videoID, "error", err)
	}
}

func (l *Ledger) sweep() {
	for {
		time.Sleep(10 * time.Minute)
		cutoff := time.Now().Add(-sessionIdleExpiry)
		l.mu.Lock()
		for key, s := range l.sessions {
			if s.lastEvent.Before(cutoff) {
				delete(l.sessions, key)
			}
		}
		l.mu.Unlock()
	}
}

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

func parseUserAgent(uaStr string) (browser, device string) {
	if uaStr == "" {
		return "", ""
	}
	ua := useragent.New(uaStr)
	browser, _ = ua.Browser()
	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, device
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

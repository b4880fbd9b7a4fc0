package video

import (
	"strings"
	"time"
)

// VideoRecord is one persisted gallery row. FileKey is immutable after
// creation; a re-upload gets a new key.
type VideoRecord struct {
	ID          string
	OwnerID     *string
	Title       string
	Description string
	FileKey     string
	ContentType string
	FileSize    int64
	Views       int64
	CreatedAt   time.Time
}

// sentinelTitles marks seed/test rows that must never be displayed. The
// original dataset shipped sample cards with these titles.
var sentinelTitles = map[string]bool{
	"test":                        true,
	"sample video":                true,
	"__seed__":                    true,
	"amazing adventure in nature": true,
}

func isSentinelTitle(title string) bool {
	return sentinelTitles[strings.ToLower(strings.TrimSpace(title))]
}

// invalidReason reports why a record fails the local validity predicates,
// or "" if only the existence probe remains to be checked. Object
// retrievability is the prober's job, not this function's.
func (v *VideoRecord) invalidReason(now time.Time) string {
	if v.ID == "" {
		return "missing id"
	}
	if v.FileKey == "" {
		return "missing object key"
	}
	if v.OwnerID == nil || *v.OwnerID == "" {
		return "missing owner"
	}
	if isSentinelTitle(v.Title) {
		return "sentinel title"
	}
	if v.CreatedAt.After(now) {
		return "future creation time"
	}
	return ""
}

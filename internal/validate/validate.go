package validate

import "fmt"

// Text field length limits, shared by every write path.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
)

// DefaultTitle substitutes for an empty title instead of rejecting the write.
const DefaultTitle = "Untitled Video"

// allowedContentTypes is the upload MIME allow-list. Everything else is
// rejected before any network call is made.
var allowedContentTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }

// Upload validates file size and content type locally. Returns an empty
// string when the upload is acceptable.
func Upload(size int64, maxBytes int64, contentType string) string {
	if size <= 0 {
		return "file size must be positive"
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Sprintf("file exceeds the maximum size of %d MB", maxBytes/(1024*1024))
	}
	if !allowedContentTypes[contentType] {
		return "only video/mp4, video/webm, and video/quicktime uploads are supported"
	}
	return ""
}

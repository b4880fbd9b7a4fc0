package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vidshare/vidshare/internal/auth"
)

const testJWTSecret = "test-secret-for-video-tests"
const testUserID = "550e8400-e29b-41d4-a716-446655440000"

var (
	errNotFound    = errors.New("NotFound: status code 404")
	errConnRefused = errors.New("connection refused")
)

// mockStorage is a mutex-guarded ObjectStorage test double. Probes run
// concurrently during reconciliation, so every mutation takes the lock.
type mockStorage struct {
	mu sync.Mutex

	headErrKeys map[string]error // keys whose HeadObject fails
	headDelay   time.Duration
	headCalls   []string

	uploadErr    error
	uploadedKeys []string

	deleteErr   error
	deletedKeys []string

	batchErr     error
	batchDeletes [][]string

	downloadURL string
	downloadErr error
}

func (m *mockStorage) Upload(_ context.Context, key string, body io.Reader, _ string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	_, _ = io.Copy(io.Discard, body)
	m.uploadedKeys = append(m.uploadedKeys, key)
	return nil
}

func (m *mockStorage) HeadObject(ctx context.Context, key string) (int64, string, error) {
	if m.headDelay > 0 {
		select {
		case <-ctx.Done():
			return 0, "", ctx.Err()
		case <-time.After(m.headDelay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headCalls = append(m.headCalls, key)
	if err, ok := m.headErrKeys[key]; ok {
		return 0, "", err
	}
	return 1024, "video/mp4", nil
}

func (m *mockStorage) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedKeys = append(m.deletedKeys, key)
	return nil
}

func (m *mockStorage) DeleteObjects(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchDeletes = append(m.batchDeletes, keys)
	return m.batchErr
}

func (m *mockStorage) PublicURL(key string) string {
	return "https://cdn.test/videos/" + key
}

func (m *mockStorage) GenerateDownloadURLWithDisposition(_ context.Context, key string, _ string, _ time.Duration) (string, error) {
	return m.downloadURL, m.downloadErr
}

func (m *mockStorage) headCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.headCalls)
}

func (m *mockStorage) batchDeleteCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batchDeletes...)
}

func authenticatedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	token, err := auth.GenerateAccessToken(testJWTSecret, testUserID)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func newAuthMiddleware() func(http.Handler) http.Handler {
	return auth.NewHandler(nil, testJWTSecret, false).Middleware
}

func strPtr(s string) *string { return &s }

func testRecord(id int, ownerID *string, title string, views int64, createdAt time.Time) VideoRecord {
	return VideoRecord{
		ID:          fmt.Sprintf("video-%d", id),
		OwnerID:     ownerID,
		Title:       title,
		Description: "",
		FileKey:     fmt.Sprintf("owner/key-%d.mp4", id),
		ContentType: "video/mp4",
		FileSize:    1024,
		Views:       views,
		CreatedAt:   createdAt,
	}
}

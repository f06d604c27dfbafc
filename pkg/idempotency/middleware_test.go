package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockKeyRepository is a mock implementation of KeyRepository for testing
type mockKeyRepository struct {
	acquireLockFunc   func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)
	takeOverFunc      func(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error)
	storeResponseFunc func(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	released []string
}

func (m *mockKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	if m.acquireLockFunc != nil {
		return m.acquireLockFunc(ctx, key)
	}
	return key, true, nil
}

func (m *mockKeyRepository) TakeOver(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
	if m.takeOverFunc != nil {
		return m.takeOverFunc(ctx, keyID, staleLockedAt)
	}
	return true, nil
}

func (m *mockKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	m.released = append(m.released, keyID)
	return nil
}

func (m *mockKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	if m.storeResponseFunc != nil {
		return m.storeResponseFunc(ctx, keyID, responseCode, responseBody, headers)
	}
	return nil
}

func (m *mockKeyRepository) Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error) {
	return nil, ErrNotFound
}

func (m *mockKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockKeyRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func newTestRouter(config *Config, status int, handlerCalled *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Middleware(config))
	handler := func(c *gin.Context) {
		if handlerCalled != nil {
			*handlerCalled = true
		}
		c.JSON(status, gin.H{"message": "handled"})
	}
	router.POST("/test", handler)
	router.GET("/test", handler)
	return router
}

func postWithKey(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_NoKey_Optional(t *testing.T) {
	config := DefaultConfig("test-service", &mockKeyRepository{})
	router := newTestRouter(config, http.StatusOK, nil)

	w := postWithKey(router, "", `{"data":"test"}`)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestMiddleware_NoKey_Required(t *testing.T) {
	config := DefaultConfig("test-service", &mockKeyRepository{})
	config.RequireKey = true
	router := newTestRouter(config, http.StatusOK, nil)

	w := postWithKey(router, "", `{"data":"test"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMiddleware_InvalidKey(t *testing.T) {
	config := DefaultConfig("test-service", &mockKeyRepository{})
	router := newTestRouter(config, http.StatusOK, nil)

	w := postWithKey(router, "invalid key with spaces", `{"data":"test"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMiddleware_NewRequest_StoresResponse(t *testing.T) {
	var storedCode int
	var storedBody []byte
	repo := &mockKeyRepository{
		storeResponseFunc: func(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
			storedCode = responseCode
			storedBody = responseBody
			return nil
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if storedCode != http.StatusCreated {
		t.Errorf("Expected stored status 201, got %d", storedCode)
	}
	if string(storedBody) != w.Body.String() {
		t.Errorf("Expected stored body %s, got %s", w.Body.String(), storedBody)
	}
}

func TestMiddleware_ServerError_ReleasesLock(t *testing.T) {
	stored := false
	repo := &mockKeyRepository{
		storeResponseFunc: func(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
			stored = true
			return nil
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusInternalServerError, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if stored {
		t.Error("failed responses must not be cached")
	}
	if len(repo.released) != 1 {
		t.Errorf("Expected lock to be released once, got %d", len(repo.released))
	}
}

func TestMiddleware_ClientError_ReleasesLock(t *testing.T) {
	repo := &mockKeyRepository{}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusNotFound, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if len(repo.released) != 1 {
		t.Errorf("Expected lock to be released once, got %d", len(repo.released))
	}
}

func TestMiddleware_CachedResponse(t *testing.T) {
	completedAt := time.Now().UTC()
	cachedResponse := []byte(`{"message":"cached"}`)

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				ResponseCode:       http.StatusCreated,
				ResponseBody:       cachedResponse,
				ResponseHeaders:    map[string]string{"X-Request-ID": "original"},
				CompletedAt:        &completedAt,
			}, false, nil
		},
	}

	called := false
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, &called)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if called {
		t.Error("Handler should not be called for cached response")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if w.Body.String() != string(cachedResponse) {
		t.Errorf("Expected cached response, got %s", w.Body.String())
	}
	if w.Header().Get(HeaderIdempotentReplayed) != "true" {
		t.Error("Expected replay header on cached response")
	}
}

func TestMiddleware_ParameterMismatch(t *testing.T) {
	completedAt := time.Now().UTC()
	originalFingerprint := ComputeFingerprint("/test", []byte(`{"data":"original"}`))

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: originalFingerprint,
				ResponseCode:       http.StatusCreated,
				CompletedAt:        &completedAt,
			}, false, nil
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, nil)

	w := postWithKey(router, "test-key-123", `{"data":"different"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
}

func TestMiddleware_ConcurrentRequest(t *testing.T) {
	lockedAt := time.Now().UTC()

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}, false, nil
		},
		takeOverFunc: func(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
			t.Error("TakeOver should not be called for a fresh lock")
			return false, nil
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestMiddleware_StaleLock_TakesOver(t *testing.T) {
	lockedAt := time.Now().UTC().Add(-time.Hour)
	var takenFrom time.Time

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}, false, nil
		},
		takeOverFunc: func(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
			takenFrom = staleLockedAt
			return true, nil
		},
	}

	called := false
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, &called)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if !called {
		t.Error("Handler should run after taking over a stale lock")
	}
	if !takenFrom.Equal(lockedAt) {
		t.Errorf("Expected takeover from %v, got %v", lockedAt, takenFrom)
	}
}

func TestMiddleware_StaleLock_LostRace(t *testing.T) {
	lockedAt := time.Now().UTC().Add(-time.Hour)

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}, false, nil
		},
		takeOverFunc: func(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
			return false, nil
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestMiddleware_StorageFailure(t *testing.T) {
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return nil, false, errors.New("database connection failed")
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusCreated, nil)

	w := postWithKey(router, "test-key-123", `{"data":"test"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestMiddleware_SkipGETRequest(t *testing.T) {
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			t.Error("AcquireLock should not be called for GET request")
			return nil, false, errors.New("should not be called")
		},
	}
	router := newTestRouter(DefaultConfig("test-service", repo), http.StatusOK, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderIdempotencyKey, "test-key-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestMiddleware_KeysAreScopedPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultConfig("pick-issue-service", newGormRepo(t))
	config.UserIDExtractor = func(c *gin.Context) string { return c.GetHeader("X-User-ID") }

	calls := 0
	router := gin.New()
	router.Use(Middleware(config))
	router.POST("/test", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"n": calls, "reportedBy": c.GetHeader("X-User-ID")})
	})

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"sku":"SKU-1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderIdempotencyKey, "shared-key-1")
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send("picker-a")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.JSONEq(t, `{"n":1,"reportedBy":"picker-a"}`, first.Body.String())

	second := send("picker-b")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get(HeaderIdempotentReplayed))
	assert.JSONEq(t, `{"n":2,"reportedBy":"picker-b"}`, second.Body.String())

	retry := send("picker-a")
	require.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(HeaderIdempotentReplayed))
	assert.JSONEq(t, first.Body.String(), retry.Body.String())

	assert.Equal(t, 2, calls)
}

func TestMiddleware_StoredKeyFromAnotherUser(t *testing.T) {
	completedAt := time.Now().UTC()
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			return &IdempotencyKey{
				ID:                 "stored-id",
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				UserID:             "picker-a",
				RequestFingerprint: key.RequestFingerprint,
				ResponseCode:       http.StatusCreated,
				ResponseBody:       []byte(`{"reportedBy":"picker-a"}`),
				CompletedAt:        &completedAt,
			}, false, nil
		},
	}
	config := DefaultConfig("test-service", repo)
	config.UserIDExtractor = func(c *gin.Context) string { return "picker-b" }

	called := false
	w := postWithKey(newTestRouter(config, http.StatusCreated, &called), "test-key-123", `{"data":"test"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, called)
	assert.Empty(t, w.Header().Get(HeaderIdempotentReplayed))
}

func TestMiddleware_RequestBodyTooLarge(t *testing.T) {
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
			t.Error("AcquireLock should not be called for an oversized body")
			return key, true, nil
		},
	}
	config := DefaultConfig("test-service", repo)
	config.MaxRequestSize = 16

	called := false
	router := newTestRouter(config, http.StatusCreated, &called)

	w := postWithKey(router, "test-key-123", `{"data":"well over sixteen bytes"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "PAYLOAD_TOO_LARGE")
	assert.False(t, called)

	w = postWithKey(router, "", `{"data":"well over sixteen bytes"}`)
	assert.Equal(t, http.StatusCreated, w.Code, "requests without a key are not buffered")
}

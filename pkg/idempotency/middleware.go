package idempotency

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/pick-issue-service/pkg/errors"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
)

const (
	// HeaderIdempotencyKey is the HTTP header name for the idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderIdempotentReplayed is set on responses served from the cache
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	// ContextKeyIdempotencyKeyID is the gin context key holding the stored key ID
	ContextKeyIdempotencyKeyID = "idempotencyKeyId"
)

// responseWriter captures the response so it can be stored for replay
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns a Gin middleware that replays the first response for a
// repeated Idempotency-Key and rejects concurrent or mismatched reuse
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.OnlyMutating && !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				abort(c, errors.ErrBadRequest("Idempotency-Key header is required for this operation").
					WithDetail("header", HeaderIdempotencyKey))
				return
			}
			c.Next()
			return
		}

		if err := ValidateKeyWithMaxLength(key, config.MaxKeyLength); err != nil {
			abort(c, errors.ErrBadRequest(fmt.Sprintf("invalid idempotency key: %v", err)).
				WithDetail("header", HeaderIdempotencyKey))
			return
		}

		var userID string
		if config.UserIDExtractor != nil {
			userID = config.UserIDExtractor(c)
		}

		var requestBody []byte
		if c.Request.Body != nil {
			reader := c.Request.Body
			if config.MaxRequestSize > 0 {
				reader = http.MaxBytesReader(c.Writer, reader, config.MaxRequestSize)
			}
			body, err := io.ReadAll(reader)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if stderrors.As(err, &tooLarge) {
					abort(c, errors.ErrPayloadTooLarge(config.MaxRequestSize))
					return
				}
				abort(c, errors.ErrBadRequest("failed to read request body"))
				return
			}
			requestBody = body
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		processIdempotency(c, config, key, userID, ComputeFingerprint(c.Request.URL.Path, requestBody))
	}
}

func processIdempotency(c *gin.Context, config *Config, key, userID, fingerprint string) {
	ctx := c.Request.Context()
	logger := config.logger().With("idempotencyKey", key, "service", config.ServiceName, "userId", userID, "path", c.Request.URL.Path)
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	method := c.Request.Method

	now := time.Now().UTC()
	candidate := &IdempotencyKey{
		ID:                 uuid.NewString(),
		Key:                key,
		UserID:             userID,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      method,
		RequestFingerprint: fingerprint,
		LockedAt:           &now,
		CreatedAt:          now,
		ExpiresAt:          now.Add(config.RetentionPeriod),
	}

	stored, isNew, err := config.Repository.AcquireLock(ctx, candidate)
	if err != nil {
		logger.Error("Failed to acquire idempotency lock", "error", err)
		config.Metrics.RecordStorageError(config.ServiceName, "acquire_lock")
		abort(c, errors.ErrServiceUnavailable("idempotency storage"))
		return
	}
	config.Metrics.RecordLockAcquisitionDuration(config.ServiceName, route, method, time.Since(now).Seconds())

	if !isNew {
		if stored.UserID != userID || stored.RequestFingerprint != fingerprint {
			logger.Warn("Idempotency parameter mismatch")
			config.Metrics.RecordParameterMismatch(config.ServiceName, route, method)
			abort(c, errors.ErrUnprocessable("request parameters differ from the original request with this idempotency key"))
			return
		}

		if stored.IsCompleted() {
			logger.Info("Idempotency cache hit", "statusCode", stored.ResponseCode)
			config.Metrics.RecordHit(config.ServiceName, route, method)

			for k, v := range stored.ResponseHeaders {
				c.Header(k, v)
			}
			c.Header(HeaderIdempotentReplayed, "true")
			c.Data(stored.ResponseCode, "application/json; charset=utf-8", stored.ResponseBody)
			c.Abort()
			return
		}

		if stored.IsLocked() && !stored.IsStale(time.Now().UTC(), config.LockTimeout) {
			logger.Warn("Concurrent idempotency request", "lockedAt", stored.LockedAt)
			config.Metrics.RecordConcurrentCollision(config.ServiceName, route, method)
			abort(c, errors.ErrConflict("a request with this idempotency key is currently being processed"))
			return
		}

		var lockedAt time.Time
		if stored.LockedAt != nil {
			lockedAt = *stored.LockedAt
		}
		won, err := config.Repository.TakeOver(ctx, stored.ID, lockedAt)
		if err != nil {
			logger.Error("Failed to take over idempotency key", "error", err)
			config.Metrics.RecordStorageError(config.ServiceName, "take_over")
			abort(c, errors.ErrServiceUnavailable("idempotency storage"))
			return
		}
		if !won {
			config.Metrics.RecordConcurrentCollision(config.ServiceName, route, method)
			abort(c, errors.ErrConflict("a request with this idempotency key is currently being processed"))
			return
		}
		logger.Info("Resuming idempotency key after stale or released lock")
	}

	c.Set(ContextKeyIdempotencyKeyID, stored.ID)
	config.Metrics.RecordMiss(config.ServiceName, route, method)

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	c.Next()

	status := writer.Status()
	if status >= http.StatusBadRequest || writer.body.Len() > config.MaxResponseSize {
		// Only successful responses are replayed; a failed attempt frees the key for a retry
		if err := config.Repository.ReleaseLock(ctx, stored.ID); err != nil {
			logger.Error("Failed to release idempotency lock", "error", err)
			config.Metrics.RecordStorageError(config.ServiceName, "release_lock")
		}
		return
	}

	if err := config.Repository.StoreResponse(ctx, stored.ID, status, writer.body.Bytes(), extractResponseHeaders(c)); err != nil {
		logger.Error("Failed to store idempotency response", "error", err)
		config.Metrics.RecordStorageError(config.ServiceName, "store_response")
		return
	}
	logger.Debug("Stored idempotency response", "statusCode", status)
}

func abort(c *gin.Context, appErr *errors.AppError) {
	requestID := logging.RequestIDFromContext(c.Request.Context())
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse(requestID))
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}

func extractResponseHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 && k != "Content-Length" {
			headers[k] = v[0]
		}
	}
	return headers
}

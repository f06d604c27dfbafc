package idempotency

import (
	"context"
	"time"
)

// KeyRepository manages idempotency keys.
// Keys are scoped per (serviceId, userId, key) and AcquireLock must be atomic on that triple.
type KeyRepository interface {
	// AcquireLock inserts key locked, or returns the stored key untouched.
	// The boolean is true when key was inserted by this call.
	AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)

	// TakeOver re-locks a key whose lock was last set at staleLockedAt.
	// It returns false when another request took the key first.
	TakeOver(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error)

	// ReleaseLock clears the lock so that a retry can run the request again
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse marks the key completed and caches the response
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	// Get retrieves the key a user stored for a service
	Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error)

	// Clean removes keys that expired before the given time
	Clean(ctx context.Context, before time.Time) (int64, error)

	// EnsureIndexes creates the storage indexes or tables
	EnsureIndexes(ctx context.Context) error
}

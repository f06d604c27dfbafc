package idempotency

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKeyRepository implements KeyRepository on a SQL database through GORM
type GormKeyRepository struct {
	db *gorm.DB
}

// NewGormKeyRepository creates a new GORM-backed key repository
func NewGormKeyRepository(db *gorm.DB) *GormKeyRepository {
	return &GormKeyRepository{db: db}
}

// AcquireLock inserts the key unless (serviceId, userId, key) exists, then reads the stored row
func (r *GormKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(key)
	if result.Error != nil {
		return nil, false, result.Error
	}

	stored, err := r.Get(ctx, key.ServiceID, key.UserID, key.Key)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1 && stored.ID == key.ID, nil
}

// TakeOver re-locks a released or stale key if its lock is unchanged
func (r *GormKeyRepository) TakeOver(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("id = ? AND completed_at IS NULL", keyID)
	if staleLockedAt.IsZero() {
		q = q.Where("locked_at IS NULL")
	} else {
		q = q.Where("locked_at = ?", staleLockedAt)
	}

	result := q.Update("locked_at", time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseLock releases the lock on an idempotency key
func (r *GormKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	return r.db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("id = ?", keyID).
		Update("locked_at", nil).Error
}

// StoreResponse stores the final response for a completed request
func (r *GormKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&IdempotencyKey{ID: keyID}).
		Select("ResponseCode", "ResponseBody", "ResponseHeaders", "CompletedAt", "LockedAt").
		Updates(&IdempotencyKey{
			ResponseCode:    responseCode,
			ResponseBody:    responseBody,
			ResponseHeaders: headers,
			CompletedAt:     &now,
			LockedAt:        nil,
		}).Error
}

// Get retrieves the key a user stored for a service
func (r *GormKeyRepository) Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error) {
	var result IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND user_id = ? AND `key` = ?", serviceID, userID, key).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Clean removes expired idempotency keys
func (r *GormKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&IdempotencyKey{})
	return result.RowsAffected, result.Error
}

// EnsureIndexes migrates the idempotency_keys table
func (r *GormKeyRepository) EnsureIndexes(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&IdempotencyKey{})
}

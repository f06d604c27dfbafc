package idempotency

import (
	"time"
)

// IdempotencyKey is a stored Idempotency-Key together with the request
// fingerprint and, once completed, the response to replay
type IdempotencyKey struct {
	ID                 string `bson:"_id" gorm:"primaryKey;size:36"`
	Key                string `bson:"key" gorm:"size:255;not null;uniqueIndex:idx_service_user_key"`
	ServiceID          string `bson:"serviceId" gorm:"size:100;not null;uniqueIndex:idx_service_user_key"`
	UserID             string `bson:"userId" gorm:"size:100;not null;default:'';uniqueIndex:idx_service_user_key"`
	RequestPath        string `bson:"requestPath"`
	RequestMethod      string `bson:"requestMethod" gorm:"size:10"`
	RequestFingerprint string `bson:"requestFingerprint" gorm:"size:64"`

	LockedAt *time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty" gorm:"serializer:json;type:text"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt" gorm:"index"`
}

// TableName sets the SQL table name
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// IsCompleted returns true if the request has been completed
func (ik *IdempotencyKey) IsCompleted() bool {
	return ik.CompletedAt != nil
}

// IsLocked returns true if the request is currently being processed
func (ik *IdempotencyKey) IsLocked() bool {
	return ik.LockedAt != nil && ik.CompletedAt == nil
}

// IsStale reports whether an in-flight lock is older than timeout
func (ik *IdempotencyKey) IsStale(now time.Time, timeout time.Duration) bool {
	return ik.IsLocked() && now.Sub(*ik.LockedAt) >= timeout
}

package idempotency

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoKeyRepository implements KeyRepository using MongoDB
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{collection: db.Collection(idempotencyKeysCollection)}
}

// AcquireLock upserts the key. Only fields set on insert are written, so an
// existing document is returned as stored.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	filter := bson.M{
		"serviceId": key.ServiceID,
		"userId":    key.UserID,
		"key":       key.Key,
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":                key.ID,
			"key":                key.Key,
			"serviceId":          key.ServiceID,
			"userId":             key.UserID,
			"requestPath":        key.RequestPath,
			"requestMethod":      key.RequestMethod,
			"requestFingerprint": key.RequestFingerprint,
			"lockedAt":           key.LockedAt,
			"createdAt":          key.CreatedAt,
			"expiresAt":          key.ExpiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result IdempotencyKey
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		// Two concurrent upserts can race on the unique index; the loser reads the winner
		if mongo.IsDuplicateKeyError(err) {
			existing, getErr := r.Get(ctx, key.ServiceID, key.UserID, key.Key)
			return existing, false, getErr
		}
		return nil, false, err
	}

	return &result, result.ID == key.ID, nil
}

// TakeOver re-locks a released or stale key if its lock is unchanged
func (r *MongoKeyRepository) TakeOver(ctx context.Context, keyID string, staleLockedAt time.Time) (bool, error) {
	filter := bson.M{
		"_id":         keyID,
		"completedAt": bson.M{"$exists": false},
	}
	if staleLockedAt.IsZero() {
		filter["lockedAt"] = bson.M{"$exists": false}
	} else {
		filter["lockedAt"] = staleLockedAt
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"lockedAt": time.Now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// ReleaseLock releases the lock on an idempotency key
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": keyID},
		bson.M{"$unset": bson.M{"lockedAt": ""}},
	)
	return err
}

// StoreResponse stores the final response for a completed request
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": keyID},
		bson.M{
			"$set": bson.M{
				"responseCode":    responseCode,
				"responseBody":    responseBody,
				"responseHeaders": headers,
				"completedAt":     time.Now().UTC(),
			},
			"$unset": bson.M{"lockedAt": ""},
		},
	)
	return err
}

// Get retrieves the key a user stored for a service
func (r *MongoKeyRepository) Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error) {
	var result IdempotencyKey
	err := r.collection.FindOne(ctx, bson.M{"serviceId": serviceID, "userId": userID, "key": key}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Clean removes expired idempotency keys. The TTL index normally does this.
func (r *MongoKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureIndexes ensures that all required indexes are created
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "serviceId", Value: 1}, {Key: "userId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_service_user_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

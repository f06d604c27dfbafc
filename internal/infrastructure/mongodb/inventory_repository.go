package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/pick-issue-service/internal/domain"
	pkgmongo "github.com/wms-platform/pick-issue-service/pkg/mongodb"
)

// InventoryRepository stores the inventory ledger, unique by (sku, binId)
type InventoryRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

func NewInventoryRepository(collection *pkgmongo.InstrumentedCollection) *InventoryRepository {
	return &InventoryRepository{collection: collection}
}

func (r *InventoryRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "binId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "status", Value: 1}, {Key: "quantity", Value: -1}}},
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "status", Value: 1}, {Key: "expiryDate", Value: 1}}},
	})
}

func (r *InventoryRepository) FindBySKUAndBin(ctx context.Context, sku, binID string) (*domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	err := r.collection.FindOne(ctx, bson.M{"sku": sku, "binId": binID}).Decode(&record)
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, domain.ErrInventoryRecordNotFound
		}
		return nil, fmt.Errorf("failed to find inventory record: %w", err)
	}
	return &record, nil
}

// ApplyMutation updates status and quantity in one pipeline update so the
// floor at zero holds under concurrent decrements
func (r *InventoryRepository) ApplyMutation(ctx context.Context, sku, binID string, m domain.InventoryMutation) (*domain.InventoryRecord, error) {
	if m.IsZero() {
		return r.FindBySKUAndBin(ctx, sku, binID)
	}

	set := bson.D{{Key: "updatedAt", Value: pkgmongo.Now()}}
	if m.SetStatus != "" {
		set = append(set, bson.E{Key: "status", Value: string(m.SetStatus)})
	}
	if m.Decrement != 0 {
		set = append(set, bson.E{Key: "quantity", Value: bson.M{
			"$max": bson.A{0, bson.M{"$subtract": bson.A{"$quantity", m.Decrement}}},
		}})
	}

	var record domain.InventoryRecord
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"sku": sku, "binId": binID},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&record)
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, domain.ErrInventoryRecordNotFound
		}
		return nil, fmt.Errorf("failed to update inventory record: %w", err)
	}
	return &record, nil
}

// FindSubstitute runs the substitute search as an aggregation so undated
// stock can be ordered after dated stock
func (r *InventoryRepository) FindSubstitute(ctx context.Context, query domain.SubstituteQuery) (*domain.InventoryRecord, error) {
	cursor, err := r.collection.Aggregate(ctx, substitutePipeline(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search substitute bins: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("failed to read substitute bins: %w", err)
		}
		return nil, nil
	}

	var record domain.InventoryRecord
	if err := cursor.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode substitute bin: %w", err)
	}
	return &record, nil
}

func substitutePipeline(query domain.SubstituteQuery) mongo.Pipeline {
	match := bson.M{
		"sku":      query.SKU,
		"binId":    bson.M{"$ne": query.ExcludeBinID},
		"status":   string(domain.InventoryStatusAvailable),
		"quantity": bson.M{"$gt": 0},
	}
	if query.Rule.RequireUnexpired {
		match["$or"] = bson.A{
			bson.M{"expiryDate": nil},
			bson.M{"expiryDate": bson.M{"$gte": query.Today}},
		}
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}

	switch query.Rule.Order {
	case domain.ExpiryAsc:
		pipeline = append(pipeline,
			bson.D{{Key: "$addFields", Value: bson.M{
				"_undated": bson.M{"$cond": bson.A{bson.M{"$ifNull": bson.A{"$expiryDate", false}}, 0, 1}},
			}}},
			bson.D{{Key: "$sort", Value: bson.D{
				{Key: "_undated", Value: 1},
				{Key: "expiryDate", Value: 1},
				{Key: "quantity", Value: -1},
				{Key: "binId", Value: 1},
			}}},
		)
	default:
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{
			{Key: "quantity", Value: -1},
			{Key: "binId", Value: 1},
		}}})
	}

	return append(pipeline, bson.D{{Key: "$limit", Value: 1}})
}

// Save upserts a record by (sku, binId)
func (r *InventoryRepository) Save(ctx context.Context, record *domain.InventoryRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = pkgmongo.Now()
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"sku": record.SKU, "binId": record.BinID},
		bson.M{"$set": record},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save inventory record: %w", err)
	}
	return nil
}

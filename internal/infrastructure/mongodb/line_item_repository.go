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

// LineItemRepository stores order line items, unique by (orderId, sku)
type LineItemRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

func NewLineItemRepository(collection *pkgmongo.InstrumentedCollection) *LineItemRepository {
	return &LineItemRepository{collection: collection}
}

func (r *LineItemRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
}

func (r *LineItemRepository) FindByOrderAndSKU(ctx context.Context, orderID, sku string) (*domain.OrderLineItem, error) {
	var item domain.OrderLineItem
	err := r.collection.FindOne(ctx, bson.M{"orderId": orderID, "sku": sku}).Decode(&item)
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, domain.ErrOrderLineItemNotFound
		}
		return nil, fmt.Errorf("failed to find order line item: %w", err)
	}
	return &item, nil
}

// UpdateResolution writes only the fields a resolution changes
func (r *LineItemRepository) UpdateResolution(ctx context.Context, item *domain.OrderLineItem) error {
	set := bson.M{
		"status":    item.Status,
		"updatedAt": item.UpdatedAt,
	}
	if item.Location != "" {
		set["location"] = item.Location
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order line item: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrOrderLineItemNotFound
	}
	return nil
}

// Save upserts a line item by (orderId, sku)
func (r *LineItemRepository) Save(ctx context.Context, item *domain.OrderLineItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = pkgmongo.Now()
	}

	update := bson.M{
		"$set": bson.M{
			"name":      item.Name,
			"quantity":  item.Quantity,
			"category":  item.Category,
			"status":    item.Status,
			"location":  item.Location,
			"notes":     item.Notes,
			"updatedAt": item.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": item.ID},
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"orderId": item.OrderID, "sku": item.SKU},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save order line item: %w", err)
	}
	return nil
}

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

// IssueReportRepository stores the insert-only issue audit log
type IssueReportRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

func NewIssueReportRepository(collection *pkgmongo.InstrumentedCollection) *IssueReportRepository {
	return &IssueReportRepository{collection: collection}
}

func (r *IssueReportRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "binId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
}

func (r *IssueReportRepository) Create(ctx context.Context, report *domain.IssueReport) error {
	if _, err := r.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to create issue report: %w", err)
	}
	return nil
}

func (r *IssueReportRepository) FindByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	var report domain.IssueReport
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, domain.ErrIssueReportNotFound
		}
		return nil, fmt.Errorf("failed to find issue report: %w", err)
	}
	return &report, nil
}

func (r *IssueReportRepository) List(ctx context.Context, filter domain.IssueReportFilter, limit, offset int) ([]*domain.IssueReport, int64, error) {
	query := pkgmongo.BuildFilter(
		"orderId", filter.OrderID,
		"sku", filter.SKU,
		"binId", filter.BinID,
	)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count issue reports: %w", err)
	}

	opts := options.Find().
		SetSort(pkgmongo.SortMultiple(
			pkgmongo.SortField{Field: "createdAt", Descending: true},
			pkgmongo.SortField{Field: "_id", Descending: true},
		)).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list issue reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := make([]*domain.IssueReport, 0, limit)
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, 0, fmt.Errorf("failed to decode issue reports: %w", err)
	}
	return reports, total, nil
}

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

// CorrectiveTaskRepository stores corrective tasks
type CorrectiveTaskRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

func NewCorrectiveTaskRepository(collection *pkgmongo.InstrumentedCollection) *CorrectiveTaskRepository {
	return &CorrectiveTaskRepository{collection: collection}
}

func (r *CorrectiveTaskRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "issueReportId", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "binId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
}

func (r *CorrectiveTaskRepository) Create(ctx context.Context, task *domain.CorrectiveTask) error {
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to create corrective task: %w", err)
	}
	return nil
}

func (r *CorrectiveTaskRepository) FindByIssueReportID(ctx context.Context, issueReportID string) ([]*domain.CorrectiveTask, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"issueReportId": issueReportID},
		options.Find().SetSort(pkgmongo.SortMultiple(pkgmongo.SortField{Field: "createdAt"})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find corrective tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*domain.CorrectiveTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode corrective tasks: %w", err)
	}
	return tasks, nil
}

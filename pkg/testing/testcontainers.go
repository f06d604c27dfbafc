package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	pkgmongo "github.com/wms-platform/pick-issue-service/pkg/mongodb"
)

// MongoDBContainer wraps a single-node MongoDB replica set.
// Transactions need a replica set, so a standalone server will not do.
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:7 as replica set rs0
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	mongoContainer, err := mongodb.Run(ctx,
		"mongo:7",
		mongodb.WithReplicaSet("rs0"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		_ = mongoContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{
		Container: mongoContainer,
		URI:       uri,
	}, nil
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}

// NewClient connects the service client to database on the container
func (m *MongoDBContainer) NewClient(ctx context.Context, database string) (*pkgmongo.Client, error) {
	config := pkgmongo.DefaultConfig()
	config.URI = m.URI
	config.Database = database
	config.ConnectTimeout = 30 * time.Second
	config.MinPoolSize = 1

	client, err := pkgmongo.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	return client, nil
}

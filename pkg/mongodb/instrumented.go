package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/metrics"
)

// InstrumentedClient wraps a Client with metrics and tracing
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.DatabaseName(),
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck pings the primary inside a span
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.DatabaseName())),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	setSpanStatus(span, err)
	return err
}

// WithTransaction runs fn in a transaction inside a span
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.DatabaseName())),
	)
	defer span.End()

	start := time.Now()
	attempts := 0
	err := c.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		attempts++
		return fn(sessCtx)
	})

	span.SetAttributes(attribute.Int("db.transaction.attempts", attempts))
	setSpanStatus(span, err)
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation("_transaction", "commit", err == nil, time.Since(start))
	}
	return err
}

// InstrumentedCollection wraps a mongo.Collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

func (c *InstrumentedCollection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
}

// observe finishes the span and records metrics for one operation
func (c *InstrumentedCollection) observe(ctx context.Context, span trace.Span, operation string, start time.Time, err error, rowsAffected int64) {
	setSpanStatus(span, err)
	span.End()

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, err == nil, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, err == nil, rowsAffected)
	}
}

// InsertOne inserts a single document
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	ctx, span := c.startSpan(ctx, "insertOne")
	start := time.Now()

	result, err := c.collection.InsertOne(ctx, document, opts...)

	var rows int64
	if err == nil {
		rows = 1
	}
	c.observe(ctx, span, "insertOne", start, err, rows)
	return result, err
}

// FindOne finds a single document
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	ctx, span := c.startSpan(ctx, "findOne")
	start := time.Now()

	result := c.collection.FindOne(ctx, filter, opts...)

	err := result.Err()
	if IsNotFound(err) {
		err = nil
	}
	c.observe(ctx, span, "findOne", start, err, 0)
	return result
}

// Find finds documents matching the filter
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	ctx, span := c.startSpan(ctx, "find")
	start := time.Now()

	cursor, err := c.collection.Find(ctx, filter, opts...)

	c.observe(ctx, span, "find", start, err, 0)
	return cursor, err
}

// FindOneAndUpdate atomically updates and returns a single document
func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	ctx, span := c.startSpan(ctx, "findOneAndUpdate")
	start := time.Now()

	result := c.collection.FindOneAndUpdate(ctx, filter, update, opts...)

	err := result.Err()
	var rows int64
	switch {
	case err == nil:
		rows = 1
	case IsNotFound(err):
		err = nil
	}
	c.observe(ctx, span, "findOneAndUpdate", start, err, rows)
	return result
}

// UpdateOne updates a single document
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	ctx, span := c.startSpan(ctx, "updateOne")
	start := time.Now()

	result, err := c.collection.UpdateOne(ctx, filter, update, opts...)

	var rows int64
	if result != nil {
		rows = result.ModifiedCount
		span.SetAttributes(attribute.Int64("db.matched_count", result.MatchedCount))
	}
	c.observe(ctx, span, "updateOne", start, err, rows)
	return result, err
}

// Aggregate runs an aggregation pipeline
func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	ctx, span := c.startSpan(ctx, "aggregate")
	start := time.Now()

	cursor, err := c.collection.Aggregate(ctx, pipeline, opts...)

	c.observe(ctx, span, "aggregate", start, err, 0)
	return cursor, err
}

// CountDocuments counts documents matching the filter
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	ctx, span := c.startSpan(ctx, "countDocuments")
	start := time.Now()

	count, err := c.collection.CountDocuments(ctx, filter, opts...)

	c.observe(ctx, span, "countDocuments", start, err, 0)
	return count, err
}

// CreateIndexes creates the given indexes
func (c *InstrumentedCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	ctx, span := c.startSpan(ctx, "createIndexes")
	start := time.Now()

	_, err := c.collection.Indexes().CreateMany(ctx, models)

	c.observe(ctx, span, "createIndexes", start, err, 0)
	return err
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}

func setSpanStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

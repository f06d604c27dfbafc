package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	apispec "github.com/wms-platform/pick-issue-service/api"
	"github.com/wms-platform/pick-issue-service/internal/domain"
	"github.com/wms-platform/pick-issue-service/pkg/contracts/asyncapi"
	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/kafka"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/outbox"
)

func stageNames(pipeline []bson.D) []string {
	names := make([]string, 0, len(pipeline))
	for _, stage := range pipeline {
		names = append(names, stage[0].Key)
	}
	return names
}

func TestSubstitutePipeline_QuantityDesc(t *testing.T) {
	query := domain.SubstituteQuery{
		SKU:          "SKU-1",
		ExcludeBinID: "A-01",
		Rule:         domain.SubstituteRule{Order: domain.QuantityDesc},
	}

	pipeline := substitutePipeline(query)

	assert.Equal(t, []string{"$match", "$sort", "$limit"}, stageNames(pipeline))

	match := pipeline[0][0].Value.(bson.M)
	assert.Equal(t, "SKU-1", match["sku"])
	assert.Equal(t, bson.M{"$ne": "A-01"}, match["binId"])
	assert.Equal(t, "available", match["status"])
	assert.NotContains(t, match, "$or")

	sort := pipeline[1][0].Value.(bson.D)
	assert.Equal(t, "quantity", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)
	assert.Equal(t, "binId", sort[1].Key)
}

func TestSubstitutePipeline_ExpiryAscRequiresUnexpired(t *testing.T) {
	today := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	query := domain.SubstituteQuery{
		SKU:          "SKU-1",
		ExcludeBinID: "A-01",
		Rule:         domain.SubstituteRule{Order: domain.ExpiryAsc, RequireUnexpired: true},
		Today:        today,
	}

	pipeline := substitutePipeline(query)

	assert.Equal(t, []string{"$match", "$addFields", "$sort", "$limit"}, stageNames(pipeline))

	match := pipeline[0][0].Value.(bson.M)
	require.Contains(t, match, "$or")
	assert.Equal(t, bson.A{
		bson.M{"expiryDate": nil},
		bson.M{"expiryDate": bson.M{"$gte": today}},
	}, match["$or"])

	sort := pipeline[2][0].Value.(bson.D)
	keys := make([]string, 0, len(sort))
	for _, e := range sort {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"_undated", "expiryDate", "quantity", "binId"}, keys)
}

type recordingOutbox struct {
	saved []*outbox.OutboxEvent
	err   error
}

func (r *recordingOutbox) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, events...)
	return nil
}

func TestOutboxEventRecorder_Record(t *testing.T) {
	repo := &recordingOutbox{}
	recorder := NewOutboxEventRecorder(repo, cloudevents.NewEventFactory(cloudevents.SourcePickIssue), logging.New(logging.DefaultConfig("test")))

	at := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	err := recorder.Record(ctx, "report-1", "ORD-1",
		&domain.InventoryStatusChangedEvent{IssueReportID: "report-1", SKU: "SKU-1", BinID: "A-01", Status: "damaged", ChangedAt: at},
		&domain.PickIssueReportedEvent{IssueReportID: "report-1", OrderID: "ORD-1", ReportedAt: at},
	)
	require.NoError(t, err)
	require.Len(t, repo.saved, 2)

	assert.Equal(t, kafka.Topics.InventoryEvents, repo.saved[0].Topic)
	assert.Equal(t, kafka.Topics.PickIssueEvents, repo.saved[1].Topic)

	for _, row := range repo.saved {
		assert.Equal(t, "report-1", row.AggregateID)
		assert.Equal(t, AggregateTypePickIssue, row.AggregateType)

		ce, err := row.CloudEvent()
		require.NoError(t, err)
		assert.Equal(t, row.EventType, ce.Type)
		assert.Equal(t, "report-1", ce.Subject)
		assert.Equal(t, "ORD-1", ce.OrderID)
		assert.Equal(t, "corr-1", ce.CorrelationID)
		assert.True(t, at.Equal(ce.Time))
	}

	var data map[string]any
	raw, err := json.Marshal(mustCloudEvent(t, repo.saved[0]).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "damaged", data["status"])
}

func TestOutboxEventRecorder_SaveFailure(t *testing.T) {
	repo := &recordingOutbox{err: errors.New("write conflict")}
	recorder := NewOutboxEventRecorder(repo, cloudevents.NewEventFactory(cloudevents.SourcePickIssue), nil)

	err := recorder.Record(context.Background(), "report-1", "ORD-1", &domain.PickIssueReportedEvent{})
	assert.EqualError(t, err, "write conflict")
}

func TestOutboxEventRecorder_NoEvents(t *testing.T) {
	repo := &recordingOutbox{err: errors.New("unused")}
	recorder := NewOutboxEventRecorder(repo, cloudevents.NewEventFactory(cloudevents.SourcePickIssue), nil)

	assert.NoError(t, recorder.Record(context.Background(), "report-1", "ORD-1"))
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, kafka.Topics.InventoryEvents, TopicFor(cloudevents.InventoryStatusChanged))
	assert.Equal(t, kafka.Topics.PickIssueEvents, TopicFor(cloudevents.PickIssueReported))
	assert.Equal(t, kafka.Topics.PickIssueEvents, TopicFor(cloudevents.LineItemShorted))
}

func mustCloudEvent(t *testing.T, row *outbox.OutboxEvent) *cloudevents.WMSCloudEvent {
	t.Helper()
	ce, err := row.CloudEvent()
	require.NoError(t, err)
	return ce
}

func TestOutboxPayloadsMatchEventContract(t *testing.T) {
	validator, err := asyncapi.NewEventValidatorFromBytes(apispec.AsyncAPI)
	require.NoError(t, err)

	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	issue := domain.Issue{OrderID: "ORD-1", SKU: "SKU-D", BinID: "BIN-7", Type: domain.IssueTypeWrongItem, ReporterID: "picker-1"}
	policy, ok := domain.PolicyFor(issue.Type)
	require.True(t, ok)

	item := &domain.OrderLineItem{ID: "li-1", OrderID: "ORD-1", SKU: "SKU-D"}
	inventory := &domain.InventoryRecord{SKU: "SKU-D", BinID: "BIN-7", Quantity: 0, Status: domain.InventoryStatusBlocked}

	tests := []struct {
		name string
		next domain.NextAction
		bin  string
	}{
		{"reassigned", domain.NextActionAlternateBin, "BIN-8"},
		{"shorted", domain.NextActionSkipItem, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := domain.NewIssueReport("", issue, tt.next, tt.bin, now)
			task := domain.NewCorrectiveTask(*policy.Task, issue, report.ID, now)

			repo := &recordingOutbox{}
			recorder := NewOutboxEventRecorder(repo, cloudevents.NewEventFactory(cloudevents.SourcePickIssue), nil)
			require.NoError(t, recorder.Record(context.Background(), report.ID, report.OrderID,
				domain.ResolutionEvents(report, item, inventory, task)...))
			require.Len(t, repo.saved, 4)

			for _, row := range repo.saved {
				assert.True(t, validator.HasSchema(row.EventType), row.EventType)
				assert.NoError(t, validator.ValidateEventJSON(row.Payload), row.EventType)
			}
		})
	}
}

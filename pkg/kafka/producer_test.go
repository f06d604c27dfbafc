package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
)

func TestNewMessage(t *testing.T) {
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	event := cloudevents.NewEventFactory(cloudevents.SourcePickIssue).
		CreateOrderEvent(ctx, cloudevents.LineItemReassigned, "ORD-9/SKU-3", "ORD-9", map[string]string{"binId": "B-2"})

	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, "ORD-9/SKU-3", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, cloudevents.LineItemReassigned, headers["ce-type"])
	assert.Equal(t, cloudevents.SourcePickIssue, headers["ce-source"])
	assert.Equal(t, "corr-1", headers["ce-"+cloudevents.ExtCorrelationID])
	assert.Equal(t, "ORD-9", headers["ce-"+cloudevents.ExtOrderID])
	assert.NotContains(t, headers, "ce-"+cloudevents.ExtTraceState)

	var decoded cloudevents.WMSCloudEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

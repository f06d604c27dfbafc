package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewTaskPriority(t *testing.T) {
	for _, v := range []string{"low", "medium", "high", "urgent"} {
		p, err := NewTaskPriority(v)
		require.NoError(t, err)
		assert.Equal(t, v, p.String())
	}

	_, err := NewTaskPriority("HIGH")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestTaskPriority_IsHigherThan(t *testing.T) {
	assert.True(t, PriorityUrgent.IsHigherThan(PriorityHigh))
	assert.True(t, PriorityHigh.IsHigherThan(PriorityMedium))
	assert.True(t, PriorityMedium.IsHigherThan(PriorityLow))
	assert.False(t, PriorityLow.IsHigherThan(PriorityLow))
	assert.False(t, PriorityHigh.IsHigherThan(PriorityUrgent))
}

func TestTaskPriority_Encoding(t *testing.T) {
	type doc struct {
		Priority TaskPriority `json:"priority" bson:"priority"`
	}

	data, err := json.Marshal(doc{Priority: PriorityUrgent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"priority":"urgent"}`, string(data))

	var fromJSON doc
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"high"}`), &fromJSON))
	assert.True(t, fromJSON.Priority.Equals(PriorityHigh))
	assert.Error(t, json.Unmarshal([]byte(`{"priority":"critical"}`), &fromJSON))

	raw, err := bson.Marshal(doc{Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, "high", bson.Raw(raw).Lookup("priority").StringValue())

	var fromBSON doc
	require.NoError(t, bson.Unmarshal(raw, &fromBSON))
	assert.Equal(t, PriorityHigh, fromBSON.Priority)
}

package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name  string
		pairs []interface{}
		want  bson.M
	}{
		{
			name:  "keeps non-empty values",
			pairs: []interface{}{"orderId", "ORD-1", "sku", "SKU-9"},
			want:  bson.M{"orderId": "ORD-1", "sku": "SKU-9"},
		},
		{
			name:  "skips empty strings",
			pairs: []interface{}{"orderId", "", "binId", "A-01"},
			want:  bson.M{"binId": "A-01"},
		},
		{
			name:  "keeps non-string values",
			pairs: []interface{}{"quantity", 0},
			want:  bson.M{"quantity": 0},
		},
		{
			name:  "ignores dangling key",
			pairs: []interface{}{"orderId"},
			want:  bson.M{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilter(tt.pairs...))
		})
	}
}

func TestSortMultiple(t *testing.T) {
	sort := SortMultiple(
		SortField{Field: "quantity", Descending: true},
		SortField{Field: "binId"},
	)

	assert.Equal(t, bson.D{{Key: "quantity", Value: -1}, {Key: "binId", Value: 1}}, sort)
}

func TestNow_IsUTCMillis(t *testing.T) {
	now := Now()
	assert.Equal(t, "UTC", now.Location().String())
	assert.Zero(t, now.Nanosecond()%1_000_000)
}

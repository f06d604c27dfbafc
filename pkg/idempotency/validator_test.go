package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKeyWithMaxLength(t *testing.T) {
	cases := map[string]struct {
		key  string
		max  int
		want error
	}{
		"client uuid":           {key: "9b2f4c1e-7d3a-4e8b-a1c5-0f6d2e9b8a73", max: DefaultMaxKeyLength},
		"device scoped key":     {key: "HH-0042_scan-000917", max: DefaultMaxKeyLength},
		"empty":                 {key: "", max: DefaultMaxKeyLength, want: ErrKeyRequired},
		"at the limit":          {key: strings.Repeat("k", 32), max: 32},
		"one over the limit":    {key: strings.Repeat("k", 33), max: 32, want: ErrKeyTooLong},
		"inner whitespace":      {key: "scan 917", max: DefaultMaxKeyLength, want: ErrKeyInvalid},
		"slash":                 {key: "ORD-1/SKU-1", max: DefaultMaxKeyLength, want: ErrKeyInvalid},
		"non ascii":             {key: "clé-1", max: DefaultMaxKeyLength, want: ErrKeyInvalid},
		"default limit applies": {key: strings.Repeat("k", DefaultMaxKeyLength+1), max: DefaultMaxKeyLength, want: ErrKeyTooLong},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateKeyWithMaxLength(tc.key, tc.max))
		})
	}
}

func TestComputeFingerprint(t *testing.T) {
	const path = "/api/v1/pick-issues"
	body := []byte(`{"orderId":"ORD-1","sku":"SKU-1","binId":"A-01-01","issueType":"ITEM_MISSING"}`)

	fp := ComputeFingerprint(path, body)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, ComputeFingerprint(path, body))

	otherIssue := []byte(strings.Replace(string(body), "ITEM_MISSING", "ITEM_DAMAGED", 1))
	assert.NotEqual(t, fp, ComputeFingerprint(path, otherIssue))
	assert.NotEqual(t, fp, ComputeFingerprint("/api/v1/pick-issues/x", body))

	// path and body are separated, so shifting bytes between them changes the hash
	assert.NotEqual(t, ComputeFingerprint("/a", []byte("b")), ComputeFingerprint("/ab", nil))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "scan-917", NormalizeKey(" \tscan-917\n"))
	assert.Equal(t, "", NormalizeKey("   "))
}

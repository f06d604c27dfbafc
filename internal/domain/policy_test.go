package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		issueType    IssueType
		wantMutation InventoryMutation
		wantTask     string
		wantPriority TaskPriority
		wantOrder    SubstituteOrder
		wantUnexp    bool
	}{
		{
			issueType:    IssueTypeItemDamaged,
			wantMutation: InventoryMutation{SetStatus: InventoryStatusDamaged, Decrement: 1},
			wantOrder:    QuantityDesc,
		},
		{
			issueType:    IssueTypeItemMissing,
			wantTask:     "Bin Audit Required",
			wantPriority: PriorityHigh,
			wantOrder:    QuantityDesc,
		},
		{
			issueType:    IssueTypeItemExpired,
			wantMutation: InventoryMutation{SetStatus: InventoryStatusExpired},
			wantOrder:    ExpiryAsc,
			wantUnexp:    true,
		},
		{
			issueType:    IssueTypeWrongItem,
			wantTask:     "Bin Correction Required",
			wantPriority: PriorityUrgent,
			wantOrder:    QuantityDesc,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.issueType), func(t *testing.T) {
			policy, ok := PolicyFor(tt.issueType)
			require.True(t, ok)

			assert.Equal(t, tt.wantMutation, policy.Mutation)
			assert.Equal(t, tt.wantOrder, policy.Substitute.Order)
			assert.Equal(t, tt.wantUnexp, policy.Substitute.RequireUnexpired)

			if tt.wantTask == "" {
				assert.Nil(t, policy.Task)
				return
			}
			require.NotNil(t, policy.Task)
			assert.Equal(t, tt.wantTask, policy.Task.TitlePrefix)
			assert.Equal(t, tt.wantPriority, policy.Task.Priority)
		})
	}

	_, ok := PolicyFor(IssueType("ITEM_STOLEN"))
	assert.False(t, ok)
}

func TestPolicyFor_ReturnsCopies(t *testing.T) {
	policy, _ := PolicyFor(IssueTypeItemMissing)
	policy.Task.TitlePrefix = "changed"

	again, _ := PolicyFor(IssueTypeItemMissing)
	assert.Equal(t, "Bin Audit Required", again.Task.TitlePrefix)
}

func TestSubstituteQuery_Select(t *testing.T) {
	now := time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		issue   Issue
		records []*InventoryRecord
		wantBin string
	}{
		{
			name:  "damaged prefers highest quantity",
			issue: Issue{SKU: "SKU-A", BinID: "BIN-1", Type: IssueTypeItemDamaged},
			records: []*InventoryRecord{
				{SKU: "SKU-A", BinID: "BIN-1", Quantity: 5, Status: InventoryStatusAvailable},
				{SKU: "SKU-A", BinID: "BIN-2", Quantity: 10, Status: InventoryStatusAvailable},
				{SKU: "SKU-A", BinID: "BIN-3", Quantity: 4, Status: InventoryStatusAvailable},
			},
			wantBin: "BIN-2",
		},
		{
			name:  "missing with only empty stock finds nothing",
			issue: Issue{SKU: "SKU-B", BinID: "BIN-3", Type: IssueTypeItemMissing},
			records: []*InventoryRecord{
				{SKU: "SKU-B", BinID: "BIN-3", Quantity: 0, Status: InventoryStatusAvailable},
			},
		},
		{
			name:  "expired prefers soonest unexpired batch",
			issue: Issue{SKU: "SKU-C", BinID: "BIN-4", Type: IssueTypeItemExpired},
			records: []*InventoryRecord{
				{SKU: "SKU-C", BinID: "BIN-4", Quantity: 8, Status: InventoryStatusExpired},
				{SKU: "SKU-C", BinID: "BIN-5", Quantity: 3, Status: InventoryStatusAvailable, ExpiryDate: date(2025, 1, 1)},
				{SKU: "SKU-C", BinID: "BIN-6", Quantity: 2, Status: InventoryStatusAvailable, ExpiryDate: date(2024, 6, 1)},
			},
			wantBin: "BIN-6",
		},
		{
			name:  "expired skips past batches and puts undated last",
			issue: Issue{SKU: "SKU-C", BinID: "BIN-4", Type: IssueTypeItemExpired},
			records: []*InventoryRecord{
				{SKU: "SKU-C", BinID: "BIN-7", Quantity: 50, Status: InventoryStatusAvailable},
				{SKU: "SKU-C", BinID: "BIN-8", Quantity: 9, Status: InventoryStatusAvailable, ExpiryDate: date(2024, 5, 14)},
				{SKU: "SKU-C", BinID: "BIN-9", Quantity: 1, Status: InventoryStatusAvailable, ExpiryDate: date(2024, 5, 15)},
			},
			wantBin: "BIN-9",
		},
		{
			name:  "expired falls back to undated stock",
			issue: Issue{SKU: "SKU-C", BinID: "BIN-4", Type: IssueTypeItemExpired},
			records: []*InventoryRecord{
				{SKU: "SKU-C", BinID: "BIN-7", Quantity: 50, Status: InventoryStatusAvailable},
				{SKU: "SKU-C", BinID: "BIN-8", Quantity: 9, Status: InventoryStatusAvailable, ExpiryDate: date(2023, 1, 1)},
			},
			wantBin: "BIN-7",
		},
		{
			name:  "wrong item ignores other skus and unavailable bins",
			issue: Issue{SKU: "SKU-D", BinID: "BIN-7", Type: IssueTypeWrongItem},
			records: []*InventoryRecord{
				{SKU: "SKU-D", BinID: "BIN-7", Quantity: 100, Status: InventoryStatusAvailable},
				{SKU: "SKU-X", BinID: "BIN-9", Quantity: 90, Status: InventoryStatusAvailable},
				{SKU: "SKU-D", BinID: "BIN-10", Quantity: 80, Status: InventoryStatusBlocked},
				{SKU: "SKU-D", BinID: "BIN-8", Quantity: 6, Status: InventoryStatusAvailable},
			},
			wantBin: "BIN-8",
		},
		{
			name:  "quantity ties break by bin id",
			issue: Issue{SKU: "SKU-E", BinID: "BIN-1", Type: IssueTypeItemDamaged},
			records: []*InventoryRecord{
				{SKU: "SKU-E", BinID: "BIN-C", Quantity: 5, Status: InventoryStatusAvailable},
				{SKU: "SKU-E", BinID: "BIN-A", Quantity: 5, Status: InventoryStatusAvailable},
				{SKU: "SKU-E", BinID: "BIN-B", Quantity: 5, Status: InventoryStatusAvailable},
			},
			wantBin: "BIN-A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, ok := PolicyFor(tt.issue.Type)
			require.True(t, ok)

			query := NewSubstituteQuery(tt.issue, policy.Substitute, now)
			found := query.Select(tt.records)

			next, bin := Decide(found)
			if tt.wantBin == "" {
				assert.Nil(t, found)
				assert.Equal(t, NextActionSkipItem, next)
				assert.Empty(t, bin)
				return
			}
			assert.Equal(t, NextActionAlternateBin, next)
			assert.Equal(t, tt.wantBin, bin)
		})
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2024, 5, 16, 3, 0, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), StartOfDay(in))
}

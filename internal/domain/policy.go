package domain

import (
	"fmt"
	"sort"
	"time"
)

// InventoryMutation is the change applied to the reported bin's record.
// The zero value means no mutation.
type InventoryMutation struct {
	SetStatus InventoryStatus
	Decrement int
}

// IsZero reports whether the mutation changes nothing
func (m InventoryMutation) IsZero() bool {
	return m.SetStatus == "" && m.Decrement == 0
}

// TaskTemplate describes the corrective task opened for an issue
type TaskTemplate struct {
	TitlePrefix string
	Priority    TaskPriority
	DescribeSKU bool
}

// Title renders "{prefix}: {binId}"
func (t TaskTemplate) Title(binID string) string {
	return fmt.Sprintf("%s: %s", t.TitlePrefix, binID)
}

// Description names the bin, order and issue type, and the expected SKU when asked to
func (t TaskTemplate) Description(issue Issue) string {
	desc := fmt.Sprintf("Picker reported %s at bin %s for order %s.", issue.Type, issue.BinID, issue.OrderID)
	if t.DescribeSKU {
		desc += fmt.Sprintf(" Expected SKU %s.", issue.SKU)
	}
	return desc
}

// SubstituteOrder ranks candidate substitute bins
type SubstituteOrder int

const (
	// QuantityDesc prefers the largest pool, ties by bin id
	QuantityDesc SubstituteOrder = iota
	// ExpiryAsc prefers the soonest expiry; undated stock sorts last
	ExpiryAsc
)

func (o SubstituteOrder) String() string {
	switch o {
	case ExpiryAsc:
		return "expiry_asc"
	default:
		return "quantity_desc"
	}
}

// SubstituteRule selects and orders substitute bins
type SubstituteRule struct {
	Order            SubstituteOrder
	RequireUnexpired bool
}

// ResolutionPolicy is what resolving one issue type does
type ResolutionPolicy struct {
	Mutation   InventoryMutation
	Task       *TaskTemplate
	Substitute SubstituteRule
}

var policies = map[IssueType]ResolutionPolicy{
	IssueTypeItemDamaged: {
		Mutation:   InventoryMutation{SetStatus: InventoryStatusDamaged, Decrement: 1},
		Substitute: SubstituteRule{Order: QuantityDesc},
	},
	IssueTypeItemMissing: {
		Task:       &TaskTemplate{TitlePrefix: "Bin Audit Required", Priority: PriorityHigh},
		Substitute: SubstituteRule{Order: QuantityDesc},
	},
	IssueTypeItemExpired: {
		Mutation:   InventoryMutation{SetStatus: InventoryStatusExpired},
		Substitute: SubstituteRule{Order: ExpiryAsc, RequireUnexpired: true},
	},
	IssueTypeWrongItem: {
		Task:       &TaskTemplate{TitlePrefix: "Bin Correction Required", Priority: PriorityUrgent, DescribeSKU: true},
		Substitute: SubstituteRule{Order: QuantityDesc},
	},
}

// PolicyFor returns the resolution policy of an issue type
func PolicyFor(t IssueType) (ResolutionPolicy, bool) {
	p, ok := policies[t]
	if ok && p.Task != nil {
		tmpl := *p.Task
		p.Task = &tmpl
	}
	return p, ok
}

// SubstituteQuery is the store-neutral search for an alternate bin
type SubstituteQuery struct {
	SKU          string
	ExcludeBinID string
	Rule         SubstituteRule
	// Today is the start of the current UTC day
	Today time.Time
}

// NewSubstituteQuery builds the query for an issue at now
func NewSubstituteQuery(issue Issue, rule SubstituteRule, now time.Time) SubstituteQuery {
	return SubstituteQuery{
		SKU:          issue.SKU,
		ExcludeBinID: issue.BinID,
		Rule:         rule,
		Today:        StartOfDay(now),
	}
}

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Matches reports whether r qualifies as a substitute
func (q SubstituteQuery) Matches(r *InventoryRecord) bool {
	if r.SKU != q.SKU || r.BinID == q.ExcludeBinID || !r.IsUsable() {
		return false
	}
	if q.Rule.RequireUnexpired && r.ExpiryDate != nil && r.ExpiryDate.Before(q.Today) {
		return false
	}
	return true
}

// Less orders two qualifying records; the first in order is the substitute
func (q SubstituteQuery) Less(a, b *InventoryRecord) bool {
	if q.Rule.Order == ExpiryAsc {
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	}
	if a.Quantity != b.Quantity {
		return a.Quantity > b.Quantity
	}
	return a.BinID < b.BinID
}

// Select returns the best substitute among records, or nil
func (q SubstituteQuery) Select(records []*InventoryRecord) *InventoryRecord {
	candidates := make([]*InventoryRecord, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return q.Less(candidates[i], candidates[j])
	})
	return candidates[0]
}

// Decide maps the substitute search result to the picker's next action
func Decide(found *InventoryRecord) (NextAction, string) {
	if found == nil {
		return NextActionSkipItem, ""
	}
	return NextActionAlternateBin, found.BinID
}

package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination bounds
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// OffsetRequest holds limit/offset pagination parameters
type OffsetRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParseOffsetPagination reads limit and offset from the query string.
// Missing or out-of-range values are clamped rather than rejected.
func ParseOffsetPagination(c *gin.Context) OffsetRequest {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return OffsetRequest{Limit: limit, Offset: offset}
}

// OffsetPage is a page of items with the total count of matching items
type OffsetPage[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasNext bool  `json:"hasNext"`
}

// NewOffsetPage creates a page. A nil items slice is returned as empty.
func NewOffsetPage[T any](items []T, total int64, limit, offset int) OffsetPage[T] {
	if items == nil {
		items = []T{}
	}
	return OffsetPage[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasNext: int64(offset+len(items)) < total,
	}
}

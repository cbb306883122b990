package store

import (
	"time"

	"machine-downtime-backend/config"
	"machine-downtime-backend/internal/model"
)

// Paging selects one page of a listing. Zero values mean page 1 with the
// default page size.
type Paging struct {
	Page     int
	PageSize int
}

func (p Paging) normalize() (page, size int) {
	page, size = p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = config.DefaultPageSize
	}
	return page, size
}

// Clamp caps the page size at max, filling defaults first.
func (p Paging) Clamp(def, max int) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = def
	}
	if max > 0 && p.PageSize > max {
		p.PageSize = max
	}
	return p
}

// DetailFilter narrows a detail listing. Text fields are substring matches.
// From and To are compared against from_time using their own location.
type DetailFilter struct {
	Name      string
	Operation string
	State     string
	From      *time.Time
	To        *time.Time
	Paging
}

// SummaryFilter narrows a summary listing. From and To are inclusive days.
type SummaryFilter struct {
	Name      string
	Operation string
	From      *time.Time
	To        *time.Time
	Paging
}

// EventFilter narrows a raw event listing.
type EventFilter struct {
	MachineCode string
	State       string
	Operation   string
	From        *time.Time
	To          *time.Time
	Paging
}

// Page is one page of a listing together with its navigation state.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

// NewPage builds a Page from a slice of items and the unpaged total.
func NewPage[T any](items []T, total int64, page, size int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
	}
}

// ApplyResult reports what processing one raw event changed.
type ApplyResult struct {
	Event      model.RawEvent
	Detail     model.DetailRecord
	Created    bool
	Backfilled *model.DetailRecord
	Summaries  []model.SummaryRecord
}

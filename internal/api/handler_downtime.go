package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"machine-downtime-backend/internal/parse"
	"machine-downtime-backend/internal/store"
)

// GetDetails lists derived per-event intervals, newest first.
func (h *Handler) GetDetails(c *gin.Context) {
	p, err := paging(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	from, to, err := timeRange(c, h.svc.Location())
	if err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.svc.ListDetails(c.Request.Context(), store.DetailFilter{
		Name:      c.Query("name"),
		Operation: c.Query("operation"),
		State:     c.Query("state"),
		From:      from,
		To:        to,
		Paging:    p,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetSummaries lists daily downtime summaries. A date parameter selects a
// single day and overrides from/to.
func (h *Handler) GetSummaries(c *gin.Context) {
	p, err := paging(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	from, to, err := timeRange(c, h.svc.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	if date := c.Query("date"); date != "" {
		d, err := parse.ParseDay(date, h.svc.Location())
		if err != nil {
			badRequest(c, err)
			return
		}
		from, to = &d, &d
	}

	page, err := h.svc.ListSummaries(c.Request.Context(), store.SummaryFilter{
		Name:      c.Query("name"),
		Operation: c.Query("operation"),
		From:      from,
		To:        to,
		Paging:    p,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// PostRebuild re-derives every detail and summary row.
func (h *Handler) PostRebuild(c *gin.Context) {
	res, err := h.svc.RebuildAll(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"details":   res.Details,
		"summaries": res.Summaries,
		"elapsedMs": res.Elapsed.Milliseconds(),
	})
}

type aggregateRequest struct {
	Date string `json:"date"`
}

// PostAggregate recomputes summaries for one day, or all days without a date.
func (h *Handler) PostAggregate(c *gin.Context) {
	var req aggregateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	var day *time.Time
	if req.Date != "" {
		d, err := parse.ParseDay(req.Date, h.svc.Location())
		if err != nil {
			badRequest(c, err)
			return
		}
		day = &d
	}

	n, err := h.svc.Aggregate(c.Request.Context(), day)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": n})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"machine-downtime-backend/internal/store"
	"machine-downtime-backend/internal/tracker"
)

type postEventRequest struct {
	MachineCode string `json:"machineCode"`
	State       string `json:"state"`
	Estimate    string `json:"estimate"`
	Description string `json:"description"`
	ImageRef    string `json:"imageRef"`
	Timestamp   string `json:"timestamp"`
}

// PostEvent records an operator status report.
func (h *Handler) PostEvent(c *gin.Context) {
	var req postEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ts, err := parseBound(req.Timestamp, h.svc.Location(), false)
	if err != nil {
		badRequest(c, err)
		return
	}

	ev, err := h.svc.Submit(c.Request.Context(), tracker.SubmitRequest{
		MachineCode:  req.MachineCode,
		State:        req.State,
		EstimateText: req.Estimate,
		Description:  req.Description,
		ImageRef:     req.ImageRef,
		Timestamp:    ts,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ev)
}

// GetEvents lists raw status reports.
func (h *Handler) GetEvents(c *gin.Context) {
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

	page, err := h.svc.ListEvents(c.Request.Context(), store.EventFilter{
		MachineCode: c.Query("machineCode"),
		State:       c.Query("state"),
		Operation:   c.Query("operation"),
		From:        from,
		To:          to,
		Paging:      p,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ProcessEvent re-derives the detail row of an existing raw event.
func (h *Handler) ProcessEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	res, err := h.svc.Process(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"processed": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed":  true,
		"detail":     res.Detail,
		"backfilled": res.Backfilled,
		"summaries":  res.Summaries,
	})
}

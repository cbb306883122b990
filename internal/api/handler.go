package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"machine-downtime-backend/internal/parse"
	"machine-downtime-backend/internal/store"
	"machine-downtime-backend/internal/tracker"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *tracker.Service
	store   store.Store
	webpush *webpush.Options
	log     logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(svc *tracker.Service, s store.Store, webpushOptions *webpush.Options, log logrus.FieldLogger) *Handler {
	return &Handler{
		svc:     svc,
		store:   s,
		webpush: webpushOptions,
		log:     log.WithField("component", "api"),
	}
}

// abortWithError maps service errors onto HTTP statuses.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, tracker.ErrMissingField), errors.Is(err, tracker.ErrUnknownMachine):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func paging(c *gin.Context) (store.Paging, error) {
	var p store.Paging
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("page must be an integer")
		}
		p.Page = n
	}
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("pageSize must be an integer")
		}
		p.PageSize = n
	}
	return p, nil
}

// parseBound reads a time query bound. A day-only upper bound covers the
// whole day.
func parseBound(raw string, loc *time.Location, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(parse.TimestampLayout, raw, loc); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation(parse.DayLayout, raw, loc); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Second)
		}
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.In(loc)
		return &t, nil
	}
	return nil, errors.New("invalid time " + strconv.Quote(raw))
}

func timeRange(c *gin.Context, loc *time.Location) (from, to *time.Time, err error) {
	if from, err = parseBound(c.Query("from"), loc, false); err != nil {
		return nil, nil, err
	}
	if to, err = parseBound(c.Query("to"), loc, true); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

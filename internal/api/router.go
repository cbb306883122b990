package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"machine-downtime-backend/config"
	"machine-downtime-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := cfg.CacheTTL()
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.POST("/events", handler.PostEvent)
		api.GET("/events", caching, handler.GetEvents)
		api.POST("/events/:id/process", handler.ProcessEvent)

		api.GET("/details", caching, handler.GetDetails)
		api.GET("/summaries", caching, handler.GetSummaries)
		api.POST("/rebuild", handler.PostRebuild)
		api.POST("/aggregate", handler.PostAggregate)

		api.PUT("/machines", handler.PutMachines)
		api.POST("/machines/validate", handler.ValidateMachine)
		api.GET("/operations/:operation/latest", caching, handler.GetLatestForOperation)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

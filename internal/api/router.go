package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"qr-attendance-backend/config"
	"qr-attendance-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, d Deps) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(d)
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Views != nil {
		caching = d.Views.ByEvent("id")
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/scan", handler.Scan)
		api.POST("/attendance", handler.RecordAttendance)

		api.GET("/events", handler.ListEvents)
		api.POST("/events", handler.CreateEvent)
		api.POST("/events/:id/start", handler.StartEvent)
		api.POST("/events/:id/complete", handler.CompleteEvent)
		api.DELETE("/events/:id", handler.DeleteEvent)
		api.GET("/events/:id/attendance", caching, handler.GetEventAttendance)
		api.GET("/events/:id/summary", caching, handler.GetEventSummary)
		api.GET("/events/:id/report", handler.GetEventReport)
		api.GET("/events/:id/live", handler.StreamEventAttendance)

		api.POST("/students", handler.CreateStudent)
		api.PATCH("/students/:code", handler.UpdateStudent)

		api.POST("/pins", handler.IssuePin)
		api.POST("/pins/validate", handler.ValidatePin)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

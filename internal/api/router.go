package api

import (
	"net/http"

	"doc-tracker/internal/middleware"
	"doc-tracker/internal/repository"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Tracking  *TrackingHandler
	Spaces    *SpaceHandler
	Analytics *AnalyticsHandler
	Users     *repository.UserRepository
}

// NewRouter 注册所有路由
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.GinZapLogger(), middleware.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 公开路由
	r.POST("/:shareToken/track", h.Tracking.Track)
	r.POST("/api/spaces/:spaceId/access", h.Spaces.Access)

	// 受保护的路由
	protected := r.Group("/api", middleware.AuthMiddleware(h.Users))
	{
		protected.GET("/me", Me)
		protected.GET("/shares/:token/summary", h.Analytics.Summary)
		protected.GET("/shares/:token/viewers", h.Analytics.Viewers)
		protected.GET("/shares/:token/presence", h.Analytics.Presence)
		protected.GET("/shares/:token/viewers/:viewerId", h.Analytics.Viewer)
		protected.GET("/shares/:token/sessions/:sessionId", h.Analytics.Session)
		protected.GET("/shares/:token/heatmap", h.Analytics.Heatmap)
	}
	return r
}

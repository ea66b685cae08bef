package api

import (
	"errors"
	"net/http"
	"strconv"

	"doc-tracker/internal/middleware"
	"doc-tracker/internal/service"
	"doc-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyticsHandler 所有者查看自己分享的统计
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	summary, err := h.analytics.Summary(c.Request.Context(), ownerID, c.Param("token"))
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandler) Viewers(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	viewers, err := h.analytics.Viewers(c.Request.Context(), ownerID, c.Param("token"))
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}

func (h *AnalyticsHandler) Presence(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	active, err := h.analytics.Presence(c.Request.Context(), ownerID, c.Param("token"))
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active, "count": len(active)})
}

func (h *AnalyticsHandler) Viewer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	detail, err := h.analytics.ViewerDetail(c.Request.Context(), ownerID, c.Param("token"), c.Param("viewerId"))
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *AnalyticsHandler) Session(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	logs, err := h.analytics.SessionLogs(c.Request.Context(), ownerID, c.Param("token"), c.Param("sessionId"))
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Heatmap ?page= 必填
func (h *AnalyticsHandler) Heatmap(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidPage.Error()})
		return
	}
	events, err := h.analytics.Heatmap(c.Request.Context(), ownerID, c.Param("token"), page)
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "events": events})
}

func respondAnalyticsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrShareNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
	case errors.Is(err, service.ErrViewerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotShareOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.L.Error("Failed to load share analytics", zap.String("token", c.Param("token")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analytics"})
	}
}

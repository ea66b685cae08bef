package api

import (
	"errors"
	"io"
	"net/http"

	"doc-tracker/internal/service"
	"doc-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 单个事件体的上限
const maxEventBodyBytes = 1 << 20

// TrackingHandler 接收查看器上报的事件
type TrackingHandler struct {
	tracking *service.TrackingService
}

func NewTrackingHandler(tracking *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Track POST /:shareToken/track
func (h *TrackingHandler) Track(c *gin.Context) {
	token := c.Param("shareToken")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	err = h.tracking.Track(c.Request.Context(), service.TrackRequest{
		Token:   token,
		Body:    body,
		Headers: c.Request.Header,
	})
	if err != nil {
		var denied *service.AccessDeniedError
		switch {
		case errors.Is(err, service.ErrMalformedBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrShareNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
		case errors.As(err, &denied):
			c.JSON(http.StatusForbidden, gin.H{"error": denied.Decision.Reason, "code": denied.Decision.Code})
		default:
			logger.L.Error("Failed to record tracking event", zap.String("shareToken", token), zap.Error(err))
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

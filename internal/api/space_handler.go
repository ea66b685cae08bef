package api

import (
	"errors"
	"net/http"
	"strconv"

	"doc-tracker/internal/service"
	"doc-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SpaceHandler struct {
	guard *service.AccessGuard
}

func NewSpaceHandler(guard *service.AccessGuard) *SpaceHandler {
	return &SpaceHandler{guard: guard}
}

type spaceAccessRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Access POST /api/spaces/:spaceId/access
func (h *SpaceHandler) Access(c *gin.Context) {
	spaceID, err := strconv.ParseUint(c.Param("spaceId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid space id"})
		return
	}

	var req spaceAccessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	decision, err := h.guard.CheckSpace(c.Request.Context(), uint(spaceID), service.AccessRequest{
		Email:       req.Email,
		Password:    req.Password,
		RecordVisit: true,
	})
	if err != nil {
		if errors.Is(err, service.ErrSpaceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "space not found"})
			return
		}
		logger.L.Error("Failed to check space access", zap.Uint64("spaceID", spaceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check access"})
		return
	}

	if !decision.Allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": decision.Reason, "code": decision.Code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true})
}

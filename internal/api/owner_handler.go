package api

import (
	"net/http"

	"doc-tracker/internal/middleware"
	"doc-tracker/internal/model"

	"github.com/gin-gonic/gin"
)

// Me 返回当前令牌对应的所有者
func Me(c *gin.Context) {
	v, ok := c.Get(middleware.ContextOwner)
	owner, _ := v.(*model.User)
	if !ok || owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner": gin.H{
			"id":              owner.ID,
			"email":           owner.Email,
			"display_name":    owner.DisplayName,
			"notify_by_email": owner.NotifyByEmail,
			"chat_connected":  owner.ChatWebhookURL != "",
			"crm_enabled":     owner.CRMEnabled,
		},
	})
}

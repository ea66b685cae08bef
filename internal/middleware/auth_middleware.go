package middleware

import (
	"net/http"
	"strings"

	"doc-tracker/internal/repository"
	"doc-tracker/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextOwnerID = "ownerID"
	ContextOwner   = "owner"
)

// 验证JWT中间件，只保护所有者的统计接口
func AuthMiddleware(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		// 通常Authorization格式为: "Bearer token"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		// 解析token
		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		owner, err := users.FindByID(c.Request.Context(), claims.OwnerID)
		if err != nil || owner == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "owner not found"})
			return
		}

		c.Set(ContextOwnerID, owner.ID)
		c.Set(ContextOwner, owner)
		c.Next()
	}
}

// OwnerID 读取 AuthMiddleware 写入的所有者ID
func OwnerID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextOwnerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

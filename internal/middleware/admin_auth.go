// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"kb-space-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 创建一个 Gin 中间件，用于校验管理员权限。
// 必须在 AuthMiddleware 之后使用，依赖其写入 context 的 claims。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get("claims")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未经过认证"})
			return
		}

		claims, ok := claimsValue.(*token.CustomClaims)
		if !ok || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}

		c.Next()
	}
}

// internal/api/auth_middleware.go
package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/services"
)

const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
)

// AuthMiddleware 校验 Bearer 令牌，失败时返回 401
func AuthMiddleware(users *services.UserService, response *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			response.Error(c, apperrors.NewUnauthorizedError("Authentication required", nil))
			return
		}

		parsed, err := users.Authenticate(token)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ctxUserID, parsed.UserID)
		c.Set(ctxUserEmail, parsed.Email)
		c.Next()
	}
}

// tokenFromRequest 读取 Authorization 头；浏览器的 WebSocket 无法设置请求头，
// 升级请求允许使用 ?token=
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}

// GetUserFromContext 当前请求的用户 ID
func GetUserFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(ctxUserID)
	return userID, userID != ""
}

// mustUser 已通过 AuthMiddleware 的请求一定有用户
func mustUser(c *gin.Context) string {
	userID, _ := GetUserFromContext(c)
	return userID
}

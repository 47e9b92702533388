package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"opshq/internal/services"
)

// CredentialFromRequest достаёт сессионный токен: сначала cookie, затем
// Authorization: Bearer. Пустая строка — токена нет.
func CredentialFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SessionGate — единые ворота для всех защищённых эндпоинтов: резолвим
// предъявленный токен в пользователя или отвечаем 401.
func SessionGate(auth services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		credential := CredentialFromRequest(c, cookieName)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing session credential"})
			return
		}

		user, err := auth.ResolveSession(credential)
		if err != nil {
			if errors.Is(err, services.ErrInvalidSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

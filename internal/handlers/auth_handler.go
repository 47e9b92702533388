package handlers

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"opshq/internal/middleware"
	"opshq/internal/models"
	"opshq/internal/services"
)

// базовая синтаксическая проверка; нормализация — в сервисе
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type AuthHandler struct {
	authService  services.AuthService
	cookieName   string
	cookieSecure bool
}

func NewAuthHandler(authService services.AuthService, cookieName string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authService: authService, cookieName: cookieName, cookieSecure: cookieSecure}
}

// @Summary      Запросить код входа
// @Description  Отправляет одноразовый код на email. Прежние коды для этого email гасятся.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.RequestCodeRequest  true  "Email для входа"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /auth/request-code [post]
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req models.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}

	ch, _, err := h.authService.IssueCode(email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIssueThrottled):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
		case errors.Is(err, services.ErrDeliveryFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to deliver code"})
		default:
			log.Printf("[auth][request-code] storage error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Code sent",
		"challenge_id": ch.ID,
	})
}

// @Summary      Подтвердить код входа
// @Description  Проверяет код, выдаёт сессионный токен и ставит cookie.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.VerifyCodeRequest  true  "Email и код"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /auth/verify [post]
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.VerifyCode(req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoPendingChallenge):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no pending code, please request a new one"})
		case errors.Is(err, services.ErrTooManyAttempts):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "too many attempts, please request a new code"})
		case errors.Is(err, services.ErrInvalidCode):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		default:
			log.Printf("[auth][verify] storage error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		}
		return
	}

	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, result.SessionToken, maxAge, "/", "", h.cookieSecure, true)

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user_id":    result.UserID,
		"token":      result.SessionToken, // для API-клиентов без cookie
		"expires_at": result.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout — отзываем сессию и просим клиента выбросить cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	credential := middleware.CredentialFromRequest(c, h.cookieName)
	if credential != "" {
		if err := h.authService.Logout(credential); err != nil {
			log.Printf("[auth][logout] revoke failed: %v", err)
		}
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me — минимальный защищённый эндпоинт: кто я по текущей сессии.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := getStringFromCtx(c, "user_id")
	email, _ := getStringFromCtx(c, "user_email")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "email": email})
}

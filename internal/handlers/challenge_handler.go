package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"opshq/internal/services"
)

// ChallengeHandler — аудит выданных кодов. Хэши кодов и сессионные токены
// в JSON не сериализуются.
type ChallengeHandler struct {
	authService services.AuthService
}

func NewChallengeHandler(authService services.AuthService) *ChallengeHandler {
	return &ChallengeHandler{authService: authService}
}

// @Summary      Список выданных кодов
// @Description  История challenge'ей для аудита (без секретов).
// @Tags         Auth
// @Produce      json
// @Param        limit   query     int  false  "Лимит (по умолчанию 50)"
// @Param        offset  query     int  false  "Смещение"
// @Success      200     {object}  map[string]interface{}
// @Failure      500     {object}  map[string]string
// @Router       /auth/challenges [get]
func (h *ChallengeHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	challenges, err := h.authService.ListChallenges(limit, offset)
	if err != nil {
		log.Printf("[auth][challenges] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list challenges"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenges": challenges, "count": len(challenges)})
}

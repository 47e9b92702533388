package routes

import (
	"github.com/gin-gonic/gin"

	"opshq/internal/handlers"
	"opshq/internal/middleware"
	"opshq/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	challengeHandler *handlers.ChallengeHandler,
	cookieName string,
) *gin.Engine {

	// ---- public
	r.POST("/auth/request-code", authHandler.RequestCode)
	r.POST("/auth/verify", authHandler.VerifyCode)
	// logout публичный: без валидной сессии он просто чистит cookie
	r.POST("/auth/logout", authHandler.Logout)

	// ---- protected
	r.Use(middleware.SessionGate(authService, cookieName))

	auth := r.Group("/auth")
	{
		auth.GET("/me", authHandler.Me)
		auth.GET("/challenges", challengeHandler.List)
	}

	return r
}

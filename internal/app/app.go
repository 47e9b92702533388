package app

import (
	"database/sql"
	"fmt"
	"log"

	"opshq/internal/config"
	"opshq/internal/handlers"
	"opshq/internal/repositories"
	"opshq/internal/routes"
	"opshq/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "opshq/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	// === Repos ===
	challengeRepo := repositories.NewAuthChallengeRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// === Services ===
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	opsNotifier := services.NewOpsNotifier(cfg.Telegram.BotToken, cfg.Telegram.OpsChatID)

	authService := services.NewAuthService(
		challengeRepo,
		userRepo,
		emailService,
		opsNotifier,
		[]byte(cfg.Auth.JWTSecret),
		cfg.Auth.CodeTTL(),
		cfg.Auth.SessionTTL(),
	)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService, cfg.Auth.CookieName, cfg.Auth.CookieSecure)
	challengeHandler := handlers.NewChallengeHandler(authService)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Роуты (сессионные ворота — внутри SetupRoutes)
	routes.SetupRoutes(
		router,
		authService,
		authHandler,
		challengeHandler,
		cfg.Auth.CookieName,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

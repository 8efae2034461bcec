package v1

import (
	"tg_certbot/api/v1/auth"
	"tg_certbot/api/v1/middleware"
	"tg_certbot/api/v1/orders"
	"tg_certbot/api/v1/users"
	"tg_certbot/api/v1/webhook"
	"tg_certbot/internal/bot"
	"tg_certbot/internal/config"
	"tg_certbot/internal/httpx"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter sets up the webhook ingress and the API v1 routes
func SetupRouter(r *gin.Engine, db *gorm.DB, cfg *config.Config, botHandler *bot.Handler) {
	// Telegram webhook ingress (guarded by the secret token header)
	webhookHandler := webhook.NewHandler(botHandler, cfg.Telegram.WebhookSecret)
	r.POST("/webhook/telegram", webhookHandler.Telegram)

	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", auth.LoginHandler(db, cfg))
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			// Orders routes
			ordersHandler := orders.NewHandler(db)
			ordersGroup := protected.Group("/orders")
			{
				ordersGroup.GET("", ordersHandler.List)
				ordersGroup.GET("/:id", ordersHandler.Get)
			}

			// Users routes
			usersHandler := users.NewHandler(db)
			usersGroup := protected.Group("/users")
			{
				usersGroup.GET("", usersHandler.List)
				usersGroup.POST("/quota", usersHandler.UpdateQuota)
			}
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}

// internal/app/router.go
package app

import (
	cardHandler "rewardjar-service/internal/handlers/card"
	walletHandler "rewardjar-service/internal/handlers/wallet"
	wsHandler "rewardjar-service/internal/handlers/websocket"
	"rewardjar-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	CardHandler    *cardHandler.CardHandler
	PassKitHandler *walletHandler.PassKitHandler
	AdminHandler   *walletHandler.AdminHandler
	PWAHandler     *walletHandler.PWAHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})
	api.GET("/wallet/status", h.AdminHandler.Status)

	// ==================== Apple PassKit Web Service ====================
	// Devices authenticate with "ApplePass <token>", not identity provider tokens.
	passkit := r.Group("/wallet/apple/v1")
	passkit.Use(h.PassKitHandler.RequireApple())
	{
		passkit.POST("/devices/:device/registrations/:passType/:serial", h.PassKitHandler.RegisterDevice)
		passkit.DELETE("/devices/:device/registrations/:passType/:serial", h.PassKitHandler.UnregisterDevice)
		passkit.GET("/devices/:device/registrations/:passType", h.PassKitHandler.ChangedSerials)
		passkit.GET("/passes/:passType/:serial", h.PassKitHandler.LatestPass)
		passkit.POST("/log", h.PassKitHandler.Log)
	}

	// ==================== PWA ====================
	r.GET("/pwa/:serial/manifest.json", h.PWAHandler.Manifest)
	r.GET("/ws/passes/:serial", h.WSHandler.HandleConnection)

	// ==================== Customer Cards ====================
	cards := api.Group("/cards")
	cards.Use(h.AuthMiddleware.BusinessOrAdmin()...)
	{
		cards.POST("", h.CardHandler.Enroll)
		cards.GET("/:id", h.CardHandler.GetCard)

		// Progress
		cards.POST("/:id/stamps", h.CardHandler.AddStamps)
		cards.POST("/:id/sessions", h.CardHandler.UseSessions)

		// Wallet passes
		cards.POST("/:id/passes/:platform", h.CardHandler.IssuePass)
		cards.GET("/:id/passes/google/save-url", h.CardHandler.GoogleSaveURL)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		adminWallet := admin.Group("/wallet")
		{
			adminWallet.POST("/queue/process", h.AdminHandler.ProcessQueue)
			adminWallet.GET("/queue", h.AdminHandler.ListQueue)
			adminWallet.POST("/passes/:id/push", h.AdminHandler.PushPass)
		}
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	logger.Debug("routes registered", zap.Int("count", len(r.Routes())))
}

package routes

import (
	"helpinghands_backend/internal/handlers"
	"helpinghands_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP маршруты.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers, receiptsDir string) {
	SetupPublicRoutes(ginRouter, appHandlers.HealthHandler, receiptsDir)

	// Регистрация HTTP API v1
	api := ginRouter.Group("/api/v1")
	{
		appHandlers.PaymentHandler.RegisterRoutes(api)
		appHandlers.RequestHandler.RegisterRoutes(api)
		appHandlers.AdminHandler.RegisterRoutes(api)
	}

	ginRouter.NoRoute(handlers.NoRoute)
	logger.Info("HTTP routes registered", "count", len(ginRouter.Routes()))
}

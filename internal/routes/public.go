package routes

import (
	"helpinghands_backend/internal/handlers"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupPublicRoutes - служебные маршруты вне /api/v1
func SetupPublicRoutes(r *gin.Engine, healthHandler *handlers.HealthHandler, receiptsDir string) {
	r.GET("/health", healthHandler.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Архив квитанций локального хранилища
	if receiptsDir != "" {
		r.Static("/receipts", receiptsDir)
	}
}

package routes

import (
	"net/http"

	"hr-compliance-api/config"
	"hr-compliance-api/controllers"
	"hr-compliance-api/middleware"
	"hr-compliance-api/monitor"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	if config.Current().MetricsEnabled {
		monitor.RegisterMetrics(router)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.Health)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleHR))
		{
			imports := protected.Group("/imports")
			{
				imports.POST("", controllers.CreateImport)
				imports.GET("", controllers.ListImports)
				imports.GET("/:batch_id", controllers.GetImport)
			}
			protected.POST("/certificates/refresh-status", controllers.RefreshCertificateStatuses)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found", "path": c.Request.URL.Path})
	})
}

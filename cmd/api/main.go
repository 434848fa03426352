package main

import (
	"os"

	"hr-compliance-api/config"
	"hr-compliance-api/controllers"
	"hr-compliance-api/routes"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		logrus.Fatalf("load settings: %v", err)
	}
	logFile, logWriter := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	config.InitDB()

	if settings.GinMode == "release" || settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	if settings.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		defer client.Close()
		controllers.SetImportQueue(client)
	} else {
		logrus.Info("REDIS_ADDR not set, async imports disabled")
	}

	routes.SetupRoutes(router)

	if err := os.MkdirAll(settings.UploadPath, os.ModePerm); err != nil {
		logrus.Warnf("Failed to create upload directory: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"port":        settings.ServerPort,
		"environment": settings.Environment,
		"driver":      settings.DBDriver,
	}).Info("Server starting")

	if err := router.Run(":" + settings.ServerPort); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

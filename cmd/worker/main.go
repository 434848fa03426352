package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hr-compliance-api/config"
	"hr-compliance-api/queue"
	"hr-compliance-api/services"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadSettings()
	if err != nil {
		logrus.Fatalf("load settings: %v", err)
	}
	logFile, _ := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}
	if settings.RedisAddr == "" {
		logrus.Fatal("REDIS_ADDR is required for the import worker")
	}

	config.InitDB()
	job, err := services.NewImportJobService(config.DB, settings)
	if err != nil {
		logrus.Fatalf("init import job: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     settings.RedisAddr,
		Password: settings.RedisPassword,
		DB:       settings.RedisDB,
	}, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queue.ImportQueue: 1},
		Logger:      logrus.StandardLogger(),
	})
	mux := queue.NewProcessor(job).Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logrus.WithField("queue", queue.ImportQueue).Info("import worker started")
	if err := server.Run(mux); err != nil {
		logrus.Errorf("worker stopped: %v", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/config"
	"github.com/MrZacked/Healem/internal/jobs"
	"github.com/MrZacked/Healem/internal/logger"
	"github.com/MrZacked/Healem/internal/metrics"
	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
	"github.com/MrZacked/Healem/internal/routes"
	"github.com/MrZacked/Healem/internal/scheduling"
)

func main() {
	// Load environment variables; a missing .env is fine in containers.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer zlog.Sync()

	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}

	collector := metrics.NewCollector("healem")

	// Event publishing is optional: without brokers every dispatch is a no-op.
	var notifier notification.Notifier = notification.Noop{}
	if cfg.Kafka.Brokers != "" {
		kafkaNotifier, err := notification.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		if err != nil {
			zlog.Fatal("kafka producer init failed", zap.Error(err))
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	} else {
		zlog.Info("appointment event publishing disabled, no Kafka brokers configured")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(metrics.Middleware(collector))

	if err := routes.SetupRoutes(router, db, cfg, notifier, collector, zlog); err != nil {
		zlog.Fatal("route setup failed", zap.Error(err))
	}

	sweeper := jobs.NewReminderSweeper(
		scheduling.NewStore(db),
		scheduling.NewDirectory(db),
		notifier,
		collector,
		zlog,
		cfg.Reminder.LeadHours,
	)
	if err := sweeper.Start(cfg.Reminder.CronSpec); err != nil {
		zlog.Fatal("reminder sweeper start failed", zap.Error(err))
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info("server started", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	zlog.Info("server stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"relaychat/internal/access"
	"relaychat/internal/config"
	"relaychat/internal/gateway"
	"relaychat/internal/handler"
	"relaychat/internal/middleware"
	"relaychat/internal/repository"
	"relaychat/internal/services"
	"relaychat/pkg/database"
	"relaychat/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(log)
	defer log.Logger.Sync()

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Errorf("database connection failed: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := gateway.NewClient(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Errorf("redis connection failed: %v", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	messageRepo := repository.NewMessageRepository(pool)
	receiptRepo := repository.NewReadReceiptRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	accessControl := access.NewControl(pool)

	messageService := services.NewMessageService(txRunner, messageRepo, receiptRepo, outboxRepo, accessControl, cfg.Messaging, log)
	historyService := services.NewHistoryService(messageRepo, receiptRepo, accessControl, cfg.Messaging)

	notifier := gateway.NewRedisGateway(redisClient)
	dispatcher := services.NewOutboxDispatcher(outboxRepo, notifier, cfg.Outbox, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	messageHandler := handler.NewMessageHandler(messageService)
	historyHandler := handler.NewHistoryHandler(historyService)

	if cfg.Server.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	{
		api.POST("/messages", messageHandler.Send)
		api.PATCH("/messages/:id", messageHandler.Edit)
		api.POST("/messages/:id/recall", messageHandler.Recall)
		api.POST("/messages/read", messageHandler.MarkAsRead)
		api.GET("/messages/by-client-id", messageHandler.GetByClientID)
		api.GET("/messages/history", historyHandler.History)
		api.GET("/messages/catchup", historyHandler.CatchUp)
		api.GET("/messages/unread", historyHandler.UnreadCount)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/lotwise/internal/api"
	"github.com/jeovahfialho/lotwise/internal/app"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/internal/storage/cache"
	pkglogger "github.com/jeovahfialho/lotwise/pkg/logger"
)

// @title Lotwise API
// @version 1.0
// @description API de contabilidade de lotes FIFO e P&L realizado

// @host localhost:3001
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment()); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer pkglogger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		pkglogger.Fatal("erro ao inicializar dependências", zap.Error(err))
	}
	defer deps.Close()

	checks := map[string]api.HealthChecker{"store": deps.Store}
	if deps.Redis != nil {
		checks["redis"] = cache.NewRedisCache(deps.Redis, cfg.CacheTTL)
	}

	handler := api.NewHandler(deps.Trades, deps.Portfolio, deps.Ingestion, checks)

	// Fiber app
	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Lotwise",
		DisableStartupMessage:   false,
		AppName:                 "Lotwise v1.0.0",
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               10 * 1024 * 1024, // 10MB
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	api.SetupRoutes(app, handler, cfg)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("encerrando servidor")
		if err := app.Shutdown(); err != nil {
			pkglogger.Error("erro no shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("servidor iniciado",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("dispatch", cfg.DispatchMode))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("erro no servidor", zap.Error(err))
	}
}

package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, handler *Handler, cfg *config.Config) {
	// Global middlewares
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))
	v1.Use(PrometheusMiddleware())

	trades := v1.Group("/trades")
	trades.Post("/", handler.CreateTrade)
	trades.Get("/", handler.ListTrades)
	trades.Get("/:id", handler.GetTrade)

	positions := v1.Group("/positions")
	positions.Get("/", handler.GetPositions)
	positions.Get("/:symbol/lots", handler.GetOpenLots)

	pnl := v1.Group("/pnl")
	pnl.Get("/", handler.GetRealizedPnL)
	pnl.Get("/total", handler.GetTotalRealizedPnL)
	pnl.Get("/:symbol", handler.GetSymbolPnL)

	admin := v1.Group("/admin")
	admin.Use(BasicAuth(cfg.AdminUser, cfg.AdminPassword))
	admin.Delete("/cache", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
	admin.Post("/import", handler.ImportTrades)
}

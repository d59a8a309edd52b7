package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/service"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const version = "1.0.0"

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PoolStatser é implementado pelo backend postgres.
type PoolStatser interface {
	Stats() *pgxpool.Stat
}

type Handler struct {
	tradeService     *service.TradeService
	portfolioService *service.PortfolioService
	ingestionService *service.IngestionService
	checks           map[string]HealthChecker
	poolStats        PoolStatser
}

func NewHandler(
	tradeService *service.TradeService,
	portfolioService *service.PortfolioService,
	ingestionService *service.IngestionService,
	checks map[string]HealthChecker,
) *Handler {
	h := &Handler{
		tradeService:     tradeService,
		portfolioService: portfolioService,
		ingestionService: ingestionService,
		checks:           checks,
	}
	for _, check := range checks {
		if s, ok := check.(PoolStatser); ok {
			h.poolStats = s
		}
	}
	return h
}

func (h *Handler) CreateTrade(c *fiber.Ctx) error {
	var req CreateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respondError(c, fiber.StatusBadRequest, "corpo da requisição inválido")
	}

	input := service.SubmitTradeInput{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
	}
	if req.Timestamp != nil {
		input.Timestamp = *req.Timestamp
	}

	ctx := c.UserContext()
	result, err := h.tradeService.Submit(ctx, input)
	if err != nil {
		return h.fail(c, err)
	}

	logger.WithContext(ctx).Info("trade registrado",
		zap.Int64("trade_id", result.Trade.ID),
		zap.String("symbol", result.Trade.Symbol),
		zap.Int64("quantity", result.Trade.Quantity),
		zap.Bool("queued", result.Queued))

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) ListTrades(c *fiber.Ctx) error {
	filter := domain.TradeFilter{
		Symbol: c.Query("symbol"),
		Limit:  c.QueryInt("limit", 0),
	}

	trades, err := h.tradeService.List(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(TradeListResponse{Trades: trades, Count: len(trades)})
}

func (h *Handler) GetTrade(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return h.respondError(c, fiber.StatusBadRequest, "id inválido")
	}

	trade, err := h.tradeService.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(trade)
}

func (h *Handler) GetPositions(c *fiber.Ctx) error {
	positions, err := h.portfolioService.GetOpenPositions(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}

	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.TotalCost)
	}

	return c.JSON(PositionsResponse{Positions: positions, TotalValue: total})
}

func (h *Handler) GetOpenLots(c *fiber.Ctx) error {
	symbol := domain.NormalizeSymbol(c.Params("symbol"))

	lots, err := h.portfolioService.GetOpenLots(c.UserContext(), symbol)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(LotsResponse{Symbol: symbol, Lots: lots, Count: len(lots)})
}

func (h *Handler) GetRealizedPnL(c *fiber.Ctx) error {
	ctx := c.UserContext()

	summary, err := h.portfolioService.GetRealizedPnLSummary(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	total, err := h.portfolioService.GetTotalRealizedPnL(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(PnLResponse{RealizedPnL: summary, TotalRealizedPnL: total})
}

func (h *Handler) GetTotalRealizedPnL(c *fiber.Ctx) error {
	total, err := h.portfolioService.GetTotalRealizedPnL(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(PnLTotalResponse{TotalRealizedPnL: total})
}

func (h *Handler) GetSymbolPnL(c *fiber.Ctx) error {
	symbol := domain.NormalizeSymbol(c.Params("symbol"))

	records, err := h.portfolioService.GetRealizedPnLBySymbol(c.UserContext(), symbol)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(SymbolPnLResponse{
		Symbol:           symbol,
		Records:          records,
		TotalRealizedPnL: domain.TotalRealized(records),
	})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth, len(h.checks))
	for name, check := range h.checks {
		start := time.Now()
		if err := check.HealthCheck(ctx); err != nil {
			services[name] = ServiceHealth{
				Status: "unhealthy",
				Error:  err.Error(),
			}
			continue
		}
		services[name] = ServiceHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	status := "ready"
	for _, service := range services {
		if service.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	if err := h.portfolioService.ClearCache(c.UserContext()); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "cache de projeções invalidado",
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		Runtime: RuntimeStats{
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
			ActiveGoroutines: runtime.NumGoroutine(),
		},
	}

	if h.poolStats != nil {
		dbStats := h.poolStats.Stats()
		response.Database = &DatabaseStats{
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		}
	}

	return c.JSON(response)
}

// ImportTrades aceita um upload multipart (campo "file") ou um JSON com o
// caminho de um arquivo local ao servidor.
func (h *Handler) ImportTrades(c *fiber.Ctx) error {
	if header, err := c.FormFile("file"); err == nil {
		file, err := header.Open()
		if err != nil {
			return h.respondError(c, fiber.StatusBadRequest, "arquivo inválido")
		}
		defer file.Close()

		result, err := h.ingestionService.Import(c.UserContext(), header.Filename, file)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(ImportResponse{Status: "completed", Message: "arquivo processado", Result: result})
	}

	var req ImportRequest
	if err := c.BodyParser(&req); err != nil || req.FilePath == "" {
		return h.respondError(c, fiber.StatusBadRequest, "informe um arquivo ou file_path")
	}

	if req.Async {
		jobID := uuid.NewString()

		go func() {
			result, err := h.ingestionService.ImportFile(context.Background(), req.FilePath)
			if err != nil {
				logger.Error("erro ao processar arquivo",
					zap.String("file", req.FilePath),
					zap.String("job_id", jobID),
					zap.Error(err))
				return
			}
			logger.Info("arquivo processado com sucesso",
				zap.String("file", req.FilePath),
				zap.String("job_id", jobID),
				zap.Int("imported", result.Imported),
				zap.Int("rejected", result.Rejected))
		}()

		return c.Status(fiber.StatusAccepted).JSON(ImportResponse{
			JobID:   jobID,
			Status:  "processing",
			Message: "processamento iniciado",
		})
	}

	result, err := h.ingestionService.ImportFile(c.UserContext(), req.FilePath)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ImportResponse{Status: "completed", Message: "arquivo processado", Result: result})
}

// fail traduz erros de domínio para status HTTP.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code == fiber.StatusInternalServerError {
		logger.WithContext(c.UserContext()).Error("erro ao processar requisição",
			zap.String("path", c.Path()),
			zap.Error(err))
		return h.respondError(c, code, "erro interno")
	}
	return h.respondError(c, code, err.Error())
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTrade), errors.Is(err, domain.ErrZeroQuantity):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientInventory):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTradeNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

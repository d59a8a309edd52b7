package api

import (
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/shopspring/decimal"
)

type CreateTradeRequest struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

type TradeListResponse struct {
	Trades []domain.Trade `json:"trades"`
	Count  int            `json:"count"`
}

type PositionsResponse struct {
	Positions  []domain.OpenPosition `json:"positions"`
	TotalValue decimal.Decimal       `json:"total_value"`
}

type LotsResponse struct {
	Symbol string       `json:"symbol"`
	Lots   []domain.Lot `json:"lots"`
	Count  int          `json:"count"`
}

type PnLResponse struct {
	RealizedPnL      []domain.PnLSummary `json:"realized_pnl"`
	TotalRealizedPnL decimal.Decimal     `json:"total_realized_pnl"`
}

type PnLTotalResponse struct {
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl"`
}

type SymbolPnLResponse struct {
	Symbol           string               `json:"symbol"`
	Records          []domain.RealizedPnL `json:"records"`
	TotalRealizedPnL decimal.Decimal      `json:"total_realized_pnl"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database *DatabaseStats `json:"database,omitempty"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStats struct {
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type RuntimeStats struct {
	MemoryUsed       string `json:"memory_used"`
	ActiveGoroutines int    `json:"active_goroutines"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ImportRequest struct {
	FilePath string `json:"file_path"`
	Async    bool   `json:"async"`
}

type ImportResponse struct {
	JobID   string `json:"job_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

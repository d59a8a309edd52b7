// Package storage escolhe o backend de persistência pela configuração.
package storage

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/internal/storage/postgres"
	"github.com/jeovahfialho/lotwise/internal/storage/sqlite"
	"github.com/shopspring/decimal"
)

type TradeRepository interface {
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	GetTrade(ctx context.Context, id int64) (*domain.Trade, error)
	ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error)
}

// ProjectionReader expõe as leituras derivadas do estado de lotes.
type ProjectionReader interface {
	OpenPositions(ctx context.Context) ([]domain.OpenPosition, error)
	RealizedPnLSummary(ctx context.Context) ([]domain.PnLSummary, error)
	TotalRealizedPnL(ctx context.Context) (decimal.Decimal, error)
	RealizedBySymbol(ctx context.Context, symbol string) ([]domain.RealizedPnL, error)
	ListOpenLots(ctx context.Context, symbol string) ([]domain.Lot, error)
}

type Backend interface {
	lots.Store
	TradeRepository
	ProjectionReader
	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open conecta ao backend configurado. Para postgres as tabelas não são
// criadas aqui; use o comando migrate.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("erro ao conectar ao banco: %w", err)
		}
		return postgres.NewStore(db), nil
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("driver de armazenamento desconhecido: %s", cfg.StoreDriver)
	}
}

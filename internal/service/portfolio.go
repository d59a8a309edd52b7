package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/storage"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	cachePrefix     = "portfolio:"
	cacheVersionKey = cachePrefix + "version"
)

// Cache é o subconjunto do cache Redis usado pelas projeções.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	Version(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) (int64, error)
	DeletePattern(ctx context.Context, pattern string) error
}

// PortfolioService serve as projeções de posições e P&L. Com cache ativo, as
// chaves carregam a versão corrente, que é incrementada a cada commit do
// motor de lotes.
type PortfolioService struct {
	reader storage.ProjectionReader
	cache  Cache
	log    *zap.Logger
}

func NewPortfolioService(reader storage.ProjectionReader, cache Cache) *PortfolioService {
	return &PortfolioService{
		reader: reader,
		cache:  cache,
		log:    logger.Named("portfolio"),
	}
}

func (s *PortfolioService) GetOpenPositions(ctx context.Context) ([]domain.OpenPosition, error) {
	return cached(ctx, s, "positions", func() ([]domain.OpenPosition, error) {
		positions, err := s.reader.OpenPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("erro ao buscar posições abertas: %w", err)
		}
		return positions, nil
	})
}

func (s *PortfolioService) GetRealizedPnLSummary(ctx context.Context) ([]domain.PnLSummary, error) {
	return cached(ctx, s, "pnl", func() ([]domain.PnLSummary, error) {
		summary, err := s.reader.RealizedPnLSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("erro ao buscar resumo de P&L: %w", err)
		}
		return summary, nil
	})
}

func (s *PortfolioService) GetTotalRealizedPnL(ctx context.Context) (decimal.Decimal, error) {
	return cached(ctx, s, "pnl:total", func() (decimal.Decimal, error) {
		total, err := s.reader.TotalRealizedPnL(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("erro ao somar P&L realizado: %w", err)
		}
		return total, nil
	})
}

func (s *PortfolioService) GetRealizedPnLBySymbol(ctx context.Context, symbol string) ([]domain.RealizedPnL, error) {
	records, err := s.reader.RealizedBySymbol(ctx, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar P&L de %s: %w", symbol, err)
	}
	return records, nil
}

func (s *PortfolioService) GetOpenLots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	lots, err := s.reader.ListOpenLots(ctx, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar lotes de %s: %w", symbol, err)
	}
	return lots, nil
}

// Invalidate torna obsoletas as projeções em cache. É registrado como hook
// de commit do motor. Se o incremento da versão falhar, as chaves são
// removidas; se isso também falhar, o TTL limita a defasagem.
func (s *PortfolioService) Invalidate(ctx context.Context, symbol string) {
	if s.cache == nil {
		return
	}

	_, err := s.cache.Bump(ctx, cacheVersionKey)
	if err == nil {
		return
	}
	metrics.RecordCacheInvalidationFailure("bump")
	s.log.Warn("erro ao incrementar versão do cache, removendo chaves",
		zap.String("symbol", symbol), zap.Error(err))

	if err := s.cache.DeletePattern(ctx, cachePrefix+"*"); err != nil {
		metrics.RecordCacheInvalidationFailure("delete")
		s.log.Error("erro ao invalidar cache", zap.String("symbol", symbol), zap.Error(err))
	}
}

// ClearCache remove todas as chaves de projeção.
func (s *PortfolioService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, cachePrefix+"*"); err != nil {
		return fmt.Errorf("erro ao limpar cache: %w", err)
	}
	return nil
}

func (s *PortfolioService) cacheKey(ctx context.Context, name string) (string, bool) {
	version, err := s.cache.Version(ctx, cacheVersionKey)
	if err != nil {
		s.log.Warn("cache indisponível", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%sv%d:%s", cachePrefix, version, name), true
}

func cached[T any](ctx context.Context, s *PortfolioService, name string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}

	key, ok := s.cacheKey(ctx, name)
	if !ok {
		return load()
	}

	var value T
	if err := s.cache.Get(ctx, key, &value); err == nil {
		metrics.RecordCacheHit()
		return value, nil
	}
	metrics.RecordCacheMiss()

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Debug("erro ao salvar no cache", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

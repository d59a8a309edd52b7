// Package app monta as dependências compartilhadas pelos binários.
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/internal/ingestion"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/internal/service"
	"github.com/jeovahfialho/lotwise/internal/storage"
	"github.com/jeovahfialho/lotwise/internal/storage/cache"
	"github.com/jeovahfialho/lotwise/internal/transport"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"go.uber.org/zap"
)

type App struct {
	Config    *config.Config
	Store     storage.Backend
	Redis     *redis.Client
	Cache     *cache.RedisCache
	Engine    *lots.Engine
	Portfolio *service.PortfolioService
	Trades    *service.TradeService
	Ingestion *service.IngestionService
}

// New conecta ao armazenamento e, quando necessário, ao Redis. Redis é
// obrigatório no modo stream e opcional para o cache.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: store}

	needRedis := cfg.DispatchMode == config.DispatchStream
	if needRedis || cfg.CacheEnabled {
		client, err := cache.NewClient(cfg)
		switch {
		case err == nil:
			a.Redis = client
			logger.Info("conectado ao Redis")
		case needRedis:
			store.Close()
			return nil, fmt.Errorf("redis é obrigatório com DISPATCH_MODE=stream: %w", err)
		default:
			logger.Warn("Redis não disponível, continuando sem cache", zap.Error(err))
		}
	}

	var projectionCache service.Cache
	if a.Redis != nil && cfg.CacheEnabled {
		a.Cache = cache.NewRedisCache(a.Redis, cfg.CacheTTL)
		projectionCache = a.Cache
	}

	a.Portfolio = service.NewPortfolioService(store, projectionCache)
	a.Engine = lots.NewEngine(store, lots.WithCommitHook(a.Portfolio.Invalidate))

	if cfg.DispatchMode == config.DispatchStream {
		publisher := transport.NewPublisher(a.Redis, cfg.StreamName, cfg.StreamPartitions, cfg.StreamMaxLen)
		a.Trades = service.NewQueuedTradeService(store, publisher)
	} else {
		a.Trades = service.NewDirectTradeService(store, a.Engine)
	}

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
	a.Ingestion = service.NewIngestionService(parser, a.Trades, cfg.Workers)

	return a, nil
}

// Consumer monta o consumidor de streams que aplica eventos no motor.
func (a *App) Consumer() (*transport.Consumer, error) {
	if a.Redis == nil {
		return nil, fmt.Errorf("redis não configurado")
	}
	return transport.NewConsumer(a.Redis, a.Engine, transport.OptionsFromConfig(a.Config)), nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("erro ao fechar Redis", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("erro ao fechar armazenamento", zap.Error(err))
	}
}

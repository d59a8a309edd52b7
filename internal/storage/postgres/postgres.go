package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const (
	applicationName = "lotwise"
	connectAttempts = 5
	// Tempo máximo de espera pelo advisory lock de um símbolo.
	lockTimeout = "10s"
)

// DB é o handle do pool de conexões, construído explicitamente e injetado
// nos componentes que acessam o banco.
type DB struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewDB abre o pool e espera o banco responder. O ping é repetido com
// backoff para tolerar um Postgres que ainda está subindo.
func NewDB(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("postgres").With(
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database))

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pool: %w", err)
	}

	if err := ping(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("erro ao conectar: %w", err)
	}

	log.Info("pool postgres pronto", zap.Int32("max_conns", poolConfig.MaxConns))
	return &DB{pool: pool, log: log}, nil
}

func newPoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear config: %w", err)
	}

	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MinConns = cfg.DatabaseMinConns
	poolConfig.MaxConnLifetime = cfg.DatabaseMaxConnLife
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}
	if params["lock_timeout"] == "" {
		params["lock_timeout"] = lockTimeout
	}

	return poolConfig, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	retry := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 3 * time.Second, Factor: 2}

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}

		wait := retry.Duration()
		log.Warn("postgres indisponível, tentando novamente",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	db.pool.Close()
	db.log.Info("pool postgres fechado")
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats alimenta o endpoint de estatísticas administrativas.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

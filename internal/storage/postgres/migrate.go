package postgres

import (
	"context"
	"fmt"
)

var upStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(10) NOT NULL,
		quantity BIGINT NOT NULL CHECK (quantity <> 0),
		price NUMERIC(18,2) NOT NULL CHECK (price > 0),
		timestamp TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(10) NOT NULL,
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		price NUMERIC(18,2) NOT NULL,
		trade_id BIGINT NOT NULL REFERENCES trades(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS realized_pnl (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(10) NOT NULL,
		quantity_closed BIGINT NOT NULL CHECK (quantity_closed > 0),
		avg_cost NUMERIC(18,2) NOT NULL,
		sell_price NUMERIC(18,2) NOT NULL,
		realized_pnl NUMERIC(20,2) NOT NULL,
		trade_id BIGINT NOT NULL REFERENCES trades(id),
		lot_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_trades (
		trade_id BIGINT PRIMARY KEY REFERENCES trades(id),
		processed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_symbol_fifo ON lots(symbol, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_realized_pnl_symbol ON realized_pnl(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_realized_pnl_trade ON realized_pnl(trade_id)`,
}

var downStatements = []string{
	`DROP TABLE IF EXISTS processed_trades CASCADE`,
	`DROP TABLE IF EXISTS realized_pnl CASCADE`,
	`DROP TABLE IF EXISTS lots CASCADE`,
	`DROP TABLE IF EXISTS trades CASCADE`,
}

// MigrateUp cria as tabelas em uma única transação.
func (db *DB) MigrateUp(ctx context.Context) error {
	return db.execAll(ctx, upStatements)
}

// MigrateDown remove todas as tabelas.
func (db *DB) MigrateDown(ctx context.Context) error {
	return db.execAll(ctx, downStatements)
}

func (db *DB) execAll(ctx context.Context, statements []string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("erro ao executar migração: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("erro no commit: %w", err)
	}
	return nil
}

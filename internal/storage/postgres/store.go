package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"github.com/shopspring/decimal"
)

// lockNamespace separa os advisory locks de lotes de outros usos do banco.
const lockNamespace = "lotwise.lots"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db   *DB
	pool *pgxpool.Pool
}

func NewStore(db *DB) *Store {
	return &Store{db: db, pool: db.Pool()}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Stats expõe as estatísticas do pool para o endpoint de admin.
func (s *Store) Stats() *pgxpool.Stat {
	return s.db.Stats()
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// WithSymbolTx abre uma transação e obtém um advisory lock de transação
// para o símbolo antes de chamar fn. O lock é liberado no commit ou rollback.
func (s *Store) WithSymbolTx(ctx context.Context, symbol string, fn func(tx lots.Tx) error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("symbol_tx"))

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "error").Inc()
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, lockNamespace, symbol); err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "error").Inc()
		return fmt.Errorf("erro ao obter lock do símbolo %s: %w", symbol, err)
	}

	if err := fn(&lotTx{tx: tx}); err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "rollback").Inc()
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "error").Inc()
		return fmt.Errorf("erro no commit: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("symbol_tx", "success").Inc()
	return nil
}

type lotTx struct {
	tx pgx.Tx
}

func (t *lotTx) MarkProcessed(ctx context.Context, tradeID int64, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO processed_trades (trade_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (trade_id) DO NOTHING
	`, tradeID, at)
	if err != nil {
		return false, fmt.Errorf("erro ao marcar trade %d como processado: %w", tradeID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *lotTx) OpenLots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	return queryLots(ctx, t.tx, `
		SELECT id, symbol, quantity, price, trade_id, created_at
		FROM lots
		WHERE symbol = $1 AND quantity > 0
		ORDER BY created_at ASC, id ASC
		FOR UPDATE
	`, symbol)
}

func (t *lotTx) InsertLot(ctx context.Context, lot *domain.Lot) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO lots (symbol, quantity, price, trade_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, lot.Symbol, lot.Quantity, lot.CostPrice, lot.TradeID, lot.CreatedAt).Scan(&lot.ID)
	if err != nil {
		return fmt.Errorf("erro ao inserir lote: %w", err)
	}
	return nil
}

func (t *lotTx) UpdateLotQuantity(ctx context.Context, lotID, quantity int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE lots SET quantity = $1 WHERE id = $2`, quantity, lotID)
	if err != nil {
		return fmt.Errorf("erro ao atualizar lote %d: %w", lotID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("lote %d não encontrado para atualização", lotID)
	}
	return nil
}

func (t *lotTx) DeleteLot(ctx context.Context, lotID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM lots WHERE id = $1`, lotID)
	if err != nil {
		return fmt.Errorf("erro ao remover lote %d: %w", lotID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("lote %d não encontrado para remoção", lotID)
	}
	return nil
}

func (t *lotTx) InsertRealizedPnL(ctx context.Context, record *domain.RealizedPnL) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO realized_pnl (symbol, quantity_closed, avg_cost, sell_price, realized_pnl, trade_id, lot_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, record.Symbol, record.QuantityClosed, record.CostBasisPrice, record.SellPrice,
		record.RealizedPnL, record.TradeID, record.LotID, record.CreatedAt).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("erro ao inserir P&L realizado: %w", err)
	}
	return nil
}

func (s *Store) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("create_trade"))

	err := s.pool.QueryRow(ctx, `
		INSERT INTO trades (symbol, quantity, price, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, trade.Symbol, trade.Quantity, trade.Price, trade.Timestamp).Scan(&trade.ID, &trade.CreatedAt)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("create_trade", "error").Inc()
		return fmt.Errorf("erro ao inserir trade: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("create_trade", "success").Inc()
	return nil
}

func (s *Store) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	var trade domain.Trade
	err := s.pool.QueryRow(ctx, `
		SELECT id, symbol, quantity, price, timestamp, created_at
		FROM trades
		WHERE id = $1
	`, id).Scan(&trade.ID, &trade.Symbol, &trade.Quantity, &trade.Price, &trade.Timestamp, &trade.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trade %d: %w", id, domain.ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar trade: %w", err)
	}
	return &trade, nil
}

func (s *Store) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("list_trades"))

	query := `
		SELECT id, symbol, quantity, price, timestamp, created_at
		FROM trades
	`
	args := []interface{}{}
	argCount := 0

	if filter.Symbol != "" {
		argCount++
		query += fmt.Sprintf(" WHERE symbol = $%d", argCount)
		args = append(args, filter.Symbol)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("list_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var trade domain.Trade
		if err := rows.Scan(&trade.ID, &trade.Symbol, &trade.Quantity, &trade.Price, &trade.Timestamp, &trade.CreatedAt); err != nil {
			return nil, fmt.Errorf("erro ao escanear trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar trades: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("list_trades", "success").Inc()
	return trades, nil
}

func (s *Store) ListOpenLots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	return queryLots(ctx, s.pool, `
		SELECT id, symbol, quantity, price, trade_id, created_at
		FROM lots
		WHERE symbol = $1 AND quantity > 0
		ORDER BY created_at ASC, id ASC
	`, symbol)
}

func (s *Store) OpenPositions(ctx context.Context) ([]domain.OpenPosition, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("open_positions"))

	rows, err := s.pool.Query(ctx, `
		SELECT
			symbol,
			SUM(quantity)::bigint AS total_quantity,
			SUM(quantity * price) AS total_cost,
			ROUND(SUM(quantity * price) / SUM(quantity), $1) AS weighted_avg_cost
		FROM lots
		WHERE quantity > 0
		GROUP BY symbol
		ORDER BY symbol
	`, domain.AveragePlaces)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("open_positions", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar posições: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.OpenPosition, 0)
	for rows.Next() {
		var pos domain.OpenPosition
		if err := rows.Scan(&pos.Symbol, &pos.TotalQuantity, &pos.TotalCost, &pos.WeightedAvgCost); err != nil {
			return nil, fmt.Errorf("erro ao escanear posição: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar posições: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("open_positions", "success").Inc()
	return positions, nil
}

func (s *Store) RealizedPnLSummary(ctx context.Context) ([]domain.PnLSummary, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("pnl_summary"))

	rows, err := s.pool.Query(ctx, `
		SELECT
			symbol,
			SUM(quantity_closed)::bigint AS total_quantity_closed,
			SUM(realized_pnl) AS total_realized_pnl,
			ROUND(SUM(quantity_closed * avg_cost) / SUM(quantity_closed), $1) AS avg_cost,
			ROUND(SUM(quantity_closed * sell_price) / SUM(quantity_closed), $1) AS avg_sell_price
		FROM realized_pnl
		GROUP BY symbol
		ORDER BY total_realized_pnl DESC, symbol
	`, domain.AveragePlaces)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("pnl_summary", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar resumo de P&L: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.PnLSummary, 0)
	for rows.Next() {
		var sum domain.PnLSummary
		if err := rows.Scan(&sum.Symbol, &sum.TotalQuantityClosed, &sum.TotalRealizedPnL, &sum.AvgCost, &sum.AvgSellPrice); err != nil {
			return nil, fmt.Errorf("erro ao escanear resumo de P&L: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar resumo de P&L: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("pnl_summary", "success").Inc()
	return summaries, nil
}

func (s *Store) TotalRealizedPnL(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(realized_pnl), 0) FROM realized_pnl`).Scan(&total)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("total_pnl", "error").Inc()
		return decimal.Zero, fmt.Errorf("erro ao somar P&L realizado: %w", err)
	}
	metrics.DatabaseQueries.WithLabelValues("total_pnl", "success").Inc()
	return total, nil
}

func (s *Store) RealizedBySymbol(ctx context.Context, symbol string) ([]domain.RealizedPnL, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, quantity_closed, avg_cost, sell_price, realized_pnl, trade_id, lot_id, created_at
		FROM realized_pnl
		WHERE symbol = $1
		ORDER BY created_at DESC, id DESC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar P&L do símbolo: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RealizedPnL, 0)
	for rows.Next() {
		var r domain.RealizedPnL
		if err := rows.Scan(&r.ID, &r.Symbol, &r.QuantityClosed, &r.CostBasisPrice, &r.SellPrice,
			&r.RealizedPnL, &r.TradeID, &r.LotID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("erro ao escanear P&L: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar P&L: %w", err)
	}
	return records, nil
}

func queryLots(ctx context.Context, q querier, query string, args ...any) ([]domain.Lot, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar lotes: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Lot, 0)
	for rows.Next() {
		var lot domain.Lot
		if err := rows.Scan(&lot.ID, &lot.Symbol, &lot.Quantity, &lot.CostPrice, &lot.TradeID, &lot.CreatedAt); err != nil {
			return nil, fmt.Errorf("erro ao escanear lote: %w", err)
		}
		result = append(result, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar lotes: %w", err)
	}
	return result, nil
}

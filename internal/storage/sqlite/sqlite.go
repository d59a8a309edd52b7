// Package sqlite implementa o armazenamento de lotes em um arquivo SQLite,
// usado em desenvolvimento local e nos testes do motor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity <> 0),
	price TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	price TEXT NOT NULL,
	trade_id INTEGER NOT NULL REFERENCES trades(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS realized_pnl (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	quantity_closed INTEGER NOT NULL CHECK (quantity_closed > 0),
	avg_cost TEXT NOT NULL,
	sell_price TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	trade_id INTEGER NOT NULL REFERENCES trades(id),
	lot_id INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_trades (
	trade_id INTEGER PRIMARY KEY REFERENCES trades(id),
	processed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_lots_symbol_fifo ON lots(symbol, created_at, id);
CREATE INDEX IF NOT EXISTS idx_realized_pnl_symbol ON realized_pnl(symbol);
`

type Store struct {
	db     *sql.DB
	locker *lots.KeyedLocker
	log    *zap.Logger
}

// Open abre (e cria, se preciso) o arquivo do banco e aplica o schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("erro ao criar diretório de dados %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir sqlite em %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao conectar sqlite em %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao inicializar schema: %w", err)
	}

	s := &Store{
		db:     db,
		locker: lots.NewKeyedLocker(),
		log:    logger.Named("sqlite"),
	}
	s.log.Info("banco sqlite pronto", zap.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithSymbolTx serializa o acesso ao símbolo com um lock em processo e
// executa fn em uma transação do banco.
func (s *Store) WithSymbolTx(ctx context.Context, symbol string, fn func(tx lots.Tx) error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("symbol_tx"))

	unlock, err := s.locker.Lock(ctx, symbol)
	if err != nil {
		return fmt.Errorf("erro ao obter lock do símbolo %s: %w", symbol, err)
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "error").Inc()
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&lotTx{tx: tx}); err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "rollback").Inc()
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.DatabaseQueries.WithLabelValues("symbol_tx", "error").Inc()
		return fmt.Errorf("erro no commit: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("symbol_tx", "success").Inc()
	return nil
}

type lotTx struct {
	tx *sql.Tx
}

func (t *lotTx) MarkProcessed(ctx context.Context, tradeID int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_trades (trade_id, processed_at) VALUES (?, ?)`,
		tradeID, at.UnixNano())
	if err != nil {
		return false, fmt.Errorf("erro ao marcar trade %d como processado: %w", tradeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("erro ao ler linhas afetadas: %w", err)
	}
	return n == 1, nil
}

func (t *lotTx) OpenLots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	return queryLots(ctx, t.tx, symbol)
}

func (t *lotTx) InsertLot(ctx context.Context, lot *domain.Lot) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO lots (symbol, quantity, price, trade_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		lot.Symbol, lot.Quantity, lot.CostPrice.String(), lot.TradeID, lot.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("erro ao inserir lote: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("erro ao obter id do lote: %w", err)
	}
	lot.ID = id
	return nil
}

func (t *lotTx) UpdateLotQuantity(ctx context.Context, lotID, quantity int64) error {
	return execOne(ctx, t.tx, fmt.Sprintf("lote %d", lotID),
		`UPDATE lots SET quantity = ? WHERE id = ?`, quantity, lotID)
}

func (t *lotTx) DeleteLot(ctx context.Context, lotID int64) error {
	return execOne(ctx, t.tx, fmt.Sprintf("lote %d", lotID),
		`DELETE FROM lots WHERE id = ?`, lotID)
}

func (t *lotTx) InsertRealizedPnL(ctx context.Context, record *domain.RealizedPnL) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO realized_pnl (symbol, quantity_closed, avg_cost, sell_price, realized_pnl, trade_id, lot_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Symbol, record.QuantityClosed, record.CostBasisPrice.String(), record.SellPrice.String(),
		record.RealizedPnL.String(), record.TradeID, record.LotID, record.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("erro ao inserir P&L realizado: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("erro ao obter id do P&L: %w", err)
	}
	record.ID = id
	return nil
}

func (s *Store) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("create_trade"))

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, quantity, price, timestamp, created_at) VALUES (?, ?, ?, ?, ?)`,
		trade.Symbol, trade.Quantity, trade.Price.String(), trade.Timestamp.UnixNano(), createdAt.UnixNano())
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("create_trade", "error").Inc()
		return fmt.Errorf("erro ao inserir trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("erro ao obter id do trade: %w", err)
	}

	trade.ID = id
	trade.CreatedAt = createdAt
	metrics.DatabaseQueries.WithLabelValues("create_trade", "success").Inc()
	return nil
}

func (s *Store) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, quantity, price, timestamp, created_at FROM trades WHERE id = ?`, id)
	trade, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trade %d: %w", id, domain.ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar trade: %w", err)
	}
	return trade, nil
}

func (s *Store) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	query := `SELECT id, symbol, quantity, price, timestamp, created_at FROM trades`
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, filter.Symbol)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("list_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar trades: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("list_trades", "success").Inc()
	return trades, nil
}

func (s *Store) ListOpenLots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	return queryLots(ctx, s.db, symbol)
}

func (s *Store) OpenPositions(ctx context.Context) ([]domain.OpenPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, quantity, price, trade_id, created_at
		FROM lots
		WHERE quantity > 0`)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("open_positions", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar posições: %w", err)
	}
	defer rows.Close()

	all, err := scanLots(rows)
	if err != nil {
		return nil, err
	}
	metrics.DatabaseQueries.WithLabelValues("open_positions", "success").Inc()
	return domain.AggregatePositions(all), nil
}

func (s *Store) RealizedPnLSummary(ctx context.Context) ([]domain.PnLSummary, error) {
	records, err := s.realized(ctx, "")
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("pnl_summary", "error").Inc()
		return nil, err
	}
	metrics.DatabaseQueries.WithLabelValues("pnl_summary", "success").Inc()
	return domain.AggregateRealized(records), nil
}

func (s *Store) TotalRealizedPnL(ctx context.Context) (decimal.Decimal, error) {
	records, err := s.realized(ctx, "")
	if err != nil {
		return decimal.Zero, err
	}
	return domain.TotalRealized(records), nil
}

func (s *Store) RealizedBySymbol(ctx context.Context, symbol string) ([]domain.RealizedPnL, error) {
	return s.realized(ctx, symbol)
}

func (s *Store) realized(ctx context.Context, symbol string) ([]domain.RealizedPnL, error) {
	query := `
		SELECT id, symbol, quantity_closed, avg_cost, sell_price, realized_pnl, trade_id, lot_id, created_at
		FROM realized_pnl`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar P&L realizado: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RealizedPnL, 0)
	for rows.Next() {
		var (
			r         domain.RealizedPnL
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &r.QuantityClosed, &r.CostBasisPrice, &r.SellPrice,
			&r.RealizedPnL, &r.TradeID, &r.LotID, &createdAt); err != nil {
			return nil, fmt.Errorf("erro ao escanear P&L: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar P&L: %w", err)
	}
	return records, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func queryLots(ctx context.Context, q queryer, symbol string) ([]domain.Lot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, symbol, quantity, price, trade_id, created_at
		FROM lots
		WHERE symbol = ? AND quantity > 0
		ORDER BY created_at ASC, id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar lotes: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

func scanLots(rows *sql.Rows) ([]domain.Lot, error) {
	result := make([]domain.Lot, 0)
	for rows.Next() {
		var (
			lot       domain.Lot
			createdAt int64
		)
		if err := rows.Scan(&lot.ID, &lot.Symbol, &lot.Quantity, &lot.CostPrice, &lot.TradeID, &createdAt); err != nil {
			return nil, fmt.Errorf("erro ao escanear lote: %w", err)
		}
		lot.CreatedAt = time.Unix(0, createdAt).UTC()
		result = append(result, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar lotes: %w", err)
	}
	return result, nil
}

func scanTrade(row scanner) (*domain.Trade, error) {
	var (
		trade     domain.Trade
		timestamp int64
		createdAt int64
	)
	if err := row.Scan(&trade.ID, &trade.Symbol, &trade.Quantity, &trade.Price, &timestamp, &createdAt); err != nil {
		return nil, err
	}
	trade.Timestamp = time.Unix(0, timestamp).UTC()
	trade.CreatedAt = time.Unix(0, createdAt).UTC()
	return &trade, nil
}

func execOne(ctx context.Context, e execer, what, query string, args ...any) error {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("erro ao alterar %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("erro ao ler linhas afetadas: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%s não encontrado", what)
	}
	return nil
}

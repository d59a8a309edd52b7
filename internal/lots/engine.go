package lots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Outcome é o efeito de um trade: o lote criado (compra) ou os registros de
// P&L realizado (venda). Duplicate indica reentrega de um trade já aplicado.
type Outcome struct {
	TradeID   int64                `json:"trade_id"`
	Symbol    string               `json:"symbol"`
	Side      Side                 `json:"side"`
	Lot       *domain.Lot          `json:"lot,omitempty"`
	Realized  []domain.RealizedPnL `json:"realized,omitempty"`
	Duplicate bool                 `json:"duplicate,omitempty"`
}

func (o *Outcome) RealizedPnL() decimal.Decimal {
	return domain.TotalRealized(o.Realized)
}

type Option func(*Engine)

// WithClock troca a fonte de tempo usada em created_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCommitHook registra uma função chamada após cada commit com efeito.
func WithCommitHook(hook func(ctx context.Context, symbol string)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hook)
	}
}

type Engine struct {
	store Store
	now   func() time.Time
	hooks []func(ctx context.Context, symbol string)
	log   *zap.Logger
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.Named("lots"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTrade roteia o trade pelo sinal da quantidade: positiva cria um
// lote, negativa consome lotes em FIFO.
func (e *Engine) ProcessTrade(ctx context.Context, symbol string, quantity int64, price decimal.Decimal, tradeID int64) (*Outcome, error) {
	if quantity > domain.MaxTradeQuantity || quantity < -domain.MaxTradeQuantity {
		return nil, fmt.Errorf("%w: quantity %d fora do limite", domain.ErrInvalidTrade, quantity)
	}

	switch {
	case quantity > 0:
		return e.processBuy(ctx, symbol, quantity, price, tradeID)
	case quantity < 0:
		return e.processSell(ctx, symbol, -quantity, price, tradeID)
	default:
		return nil, domain.ErrZeroQuantity
	}
}

func (e *Engine) ProcessEvent(ctx context.Context, event domain.TradeEvent) (*Outcome, error) {
	return e.ProcessTrade(ctx, event.Symbol, event.Quantity, event.Price, event.ID)
}

func (e *Engine) processBuy(ctx context.Context, symbol string, quantity int64, price decimal.Decimal, tradeID int64) (*Outcome, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradesProcessingDuration.WithLabelValues(string(SideBuy)))

	outcome := &Outcome{TradeID: tradeID, Symbol: symbol, Side: SideBuy}

	err := e.store.WithSymbolTx(ctx, symbol, func(tx Tx) error {
		now := e.now()

		fresh, err := tx.MarkProcessed(ctx, tradeID, now)
		if err != nil {
			return err
		}
		if !fresh {
			outcome.Duplicate = true
			return nil
		}

		lot := &domain.Lot{
			Symbol:    symbol,
			Quantity:  quantity,
			CostPrice: price,
			TradeID:   tradeID,
			CreatedAt: now,
		}
		if err := tx.InsertLot(ctx, lot); err != nil {
			return err
		}
		outcome.Lot = lot
		return nil
	})
	if err != nil {
		metrics.RecordTradeProcessed(string(SideBuy), "error")
		return nil, fmt.Errorf("erro ao criar lote para trade %d: %w", tradeID, err)
	}

	if outcome.Duplicate {
		metrics.RecordTradeProcessed(string(SideBuy), "duplicate")
		e.log.Warn("trade já processado, ignorando reentrega",
			zap.Int64("trade_id", tradeID),
			zap.String("symbol", symbol))
		return outcome, nil
	}

	metrics.RecordTradeProcessed(string(SideBuy), "success")
	e.log.Info("lote criado",
		zap.Int64("trade_id", tradeID),
		zap.Int64("lot_id", outcome.Lot.ID),
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", price.String()))

	e.committed(ctx, symbol)
	return outcome, nil
}

func (e *Engine) processSell(ctx context.Context, symbol string, quantity int64, price decimal.Decimal, tradeID int64) (*Outcome, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradesProcessingDuration.WithLabelValues(string(SideSell)))

	outcome := &Outcome{TradeID: tradeID, Symbol: symbol, Side: SideSell}
	var plan Plan

	err := e.store.WithSymbolTx(ctx, symbol, func(tx Tx) error {
		now := e.now()

		fresh, err := tx.MarkProcessed(ctx, tradeID, now)
		if err != nil {
			return err
		}
		if !fresh {
			outcome.Duplicate = true
			return nil
		}

		open, err := tx.OpenLots(ctx, symbol)
		if err != nil {
			return err
		}

		plan = MatchFIFO(open, quantity, price)
		if !plan.Complete() {
			return &domain.InsufficientInventoryError{
				Symbol:    symbol,
				Requested: quantity,
				Available: plan.Matched,
			}
		}

		realized := make([]domain.RealizedPnL, 0, len(plan.Closes))
		for _, c := range plan.Closes {
			record := &domain.RealizedPnL{
				Symbol:         symbol,
				QuantityClosed: c.Quantity,
				CostBasisPrice: c.Lot.CostPrice,
				SellPrice:      price,
				RealizedPnL:    c.PnL,
				TradeID:        tradeID,
				LotID:          c.Lot.ID,
				CreatedAt:      now,
			}
			if err := tx.InsertRealizedPnL(ctx, record); err != nil {
				return err
			}

			if c.Remaining == 0 {
				err = tx.DeleteLot(ctx, c.Lot.ID)
			} else {
				err = tx.UpdateLotQuantity(ctx, c.Lot.ID, c.Remaining)
			}
			if err != nil {
				return err
			}

			realized = append(realized, *record)
		}
		outcome.Realized = realized
		return nil
	})
	if err != nil {
		var shortfall *domain.InsufficientInventoryError
		if errors.As(err, &shortfall) {
			metrics.RecordTradeProcessed(string(SideSell), "insufficient")
			e.log.Warn("venda rejeitada por inventário insuficiente",
				zap.Int64("trade_id", tradeID),
				zap.String("symbol", symbol),
				zap.Int64("requested", shortfall.Requested),
				zap.Int64("available", shortfall.Available),
				zap.Int64("shortfall", plan.Shortfall()))
			return nil, err
		}
		metrics.RecordTradeProcessed(string(SideSell), "error")
		return nil, fmt.Errorf("erro ao casar venda do trade %d: %w", tradeID, err)
	}

	if outcome.Duplicate {
		metrics.RecordTradeProcessed(string(SideSell), "duplicate")
		e.log.Warn("trade já processado, ignorando reentrega",
			zap.Int64("trade_id", tradeID),
			zap.String("symbol", symbol))
		return outcome, nil
	}

	for _, c := range plan.Closes {
		metrics.RecordLotClosed(c.Remaining == 0, c.Quantity)
		e.log.Debug("lote fechado",
			zap.Int64("lot_id", c.Lot.ID),
			zap.Int64("quantity", c.Quantity),
			zap.String("cost_price", c.Lot.CostPrice.String()),
			zap.String("pnl", c.PnL.String()))
	}
	metrics.RecordTradeProcessed(string(SideSell), "success")
	metrics.RecordRealizedPnL(plan.RealizedPnL().InexactFloat64())
	e.log.Info("venda casada",
		zap.Int64("trade_id", tradeID),
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity),
		zap.Int("lots", len(plan.Closes)),
		zap.String("realized_pnl", plan.RealizedPnL().String()))

	e.committed(ctx, symbol)
	return outcome, nil
}

func (e *Engine) committed(ctx context.Context, symbol string) {
	for _, hook := range e.hooks {
		hook(ctx, symbol)
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/internal/storage"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTradeLimit = 100
	maxTradeLimit     = 1000
)

// TradeProcessor aplica um trade já persistido ao estado de lotes.
type TradeProcessor interface {
	ProcessTrade(ctx context.Context, symbol string, quantity int64, price decimal.Decimal, tradeID int64) (*lots.Outcome, error)
}

// EventPublisher entrega o evento ao worker assíncrono.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TradeEvent) (string, error)
}

type SubmitTradeInput struct {
	Symbol    string
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time
}

type SubmitResult struct {
	Trade   *domain.Trade `json:"trade"`
	Outcome *lots.Outcome `json:"outcome,omitempty"`
	Queued  bool          `json:"queued"`
	EntryID string        `json:"entry_id,omitempty"`
}

// TradeService registra trades e os encaminha ao motor de lotes, direto
// (processor) ou por stream (publisher). Exatamente um dos dois é usado.
type TradeService struct {
	repo      storage.TradeRepository
	processor TradeProcessor
	publisher EventPublisher
	now       func() time.Time
	log       *zap.Logger
}

func NewDirectTradeService(repo storage.TradeRepository, processor TradeProcessor) *TradeService {
	return &TradeService{
		repo:      repo,
		processor: processor,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Named("trades"),
	}
}

func NewQueuedTradeService(repo storage.TradeRepository, publisher EventPublisher) *TradeService {
	return &TradeService{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Named("trades"),
	}
}

// Submit valida, persiste e despacha o trade. No modo direto, uma venda sem
// inventário devolve o trade persistido junto com o erro de inventário.
func (s *TradeService) Submit(ctx context.Context, in SubmitTradeInput) (*SubmitResult, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if err := domain.ValidateTrade(symbol, in.Quantity, in.Price); err != nil {
		return nil, err
	}

	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	trade := &domain.Trade{
		Symbol:    symbol,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Timestamp: timestamp.UTC(),
	}
	if err := s.repo.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("erro ao registrar trade: %w", err)
	}

	result := &SubmitResult{Trade: trade}

	if s.publisher != nil {
		id, err := s.publisher.Publish(ctx, trade.Event())
		if err != nil {
			s.log.Error("trade registrado mas não publicado",
				zap.Int64("trade_id", trade.ID),
				zap.Error(err))
			return result, fmt.Errorf("erro ao publicar trade %d: %w", trade.ID, err)
		}
		result.Queued = true
		result.EntryID = id
		return result, nil
	}

	outcome, err := s.processor.ProcessTrade(ctx, trade.Symbol, trade.Quantity, trade.Price, trade.ID)
	if err != nil {
		return result, err
	}
	result.Outcome = outcome
	return result, nil
}

func (s *TradeService) List(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	filter.Symbol = domain.NormalizeSymbol(filter.Symbol)
	if filter.Limit <= 0 {
		filter.Limit = defaultTradeLimit
	}
	if filter.Limit > maxTradeLimit {
		filter.Limit = maxTradeLimit
	}

	trades, err := s.repo.ListTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar trades: %w", err)
	}
	return trades, nil
}

func (s *TradeService) Get(ctx context.Context, id int64) (*domain.Trade, error) {
	return s.repo.GetTrade(ctx, id)
}

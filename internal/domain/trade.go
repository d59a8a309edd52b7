package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxSymbolLength = 10
	// MaxTradeQuantity limita |quantity| de um trade; mantém a negação e as
	// somas de posição longe do overflow de int64.
	MaxTradeQuantity int64 = 1_000_000_000
)

type Trade struct {
	ID        int64           `db:"id" json:"id"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

func (t Trade) IsBuy() bool {
	return t.Quantity > 0
}

// Event monta o payload publicado para o worker.
func (t Trade) Event() TradeEvent {
	return TradeEvent{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Quantity:  t.Quantity,
		Price:     t.Price,
		Timestamp: t.Timestamp,
	}
}

type TradeFilter struct {
	Symbol string
	Limit  int
}

// TradeEvent é a mensagem que trafega entre a ingestão e o motor de lotes.
type TradeEvent struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e TradeEvent) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: id deve ser positivo", ErrInvalidTrade)
	}
	return ValidateTrade(e.Symbol, e.Quantity, e.Price)
}

// NormalizeSymbol remove espaços e converte para maiúsculas.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateTrade aplica as regras de formato de um trade: símbolo com 1 a 10
// caracteres, quantidade diferente de zero e até MaxTradeQuantity em módulo,
// preço positivo com até 2 casas.
func ValidateTrade(symbol string, quantity int64, price decimal.Decimal) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol é obrigatório", ErrInvalidTrade)
	}
	if len(symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol deve ter no máximo %d caracteres", ErrInvalidTrade, MaxSymbolLength)
	}
	if symbol != NormalizeSymbol(symbol) {
		return fmt.Errorf("%w: symbol deve estar normalizado (%q)", ErrInvalidTrade, symbol)
	}
	if quantity == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTrade, ErrZeroQuantity)
	}
	if quantity > MaxTradeQuantity || quantity < -MaxTradeQuantity {
		return fmt.Errorf("%w: quantity deve estar entre -%d e %d", ErrInvalidTrade, MaxTradeQuantity, MaxTradeQuantity)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price deve ser positivo", ErrInvalidTrade)
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("%w: price aceita no máximo 2 casas decimais", ErrInvalidTrade)
	}
	return nil
}

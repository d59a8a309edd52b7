package lots

import (
	"context"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
)

// Store é a fronteira transacional do motor de lotes.
type Store interface {
	// WithSymbolTx executa fn em uma única transação com acesso exclusivo ao
	// conjunto de lotes abertos do símbolo. Se fn retornar erro a transação é
	// desfeita e o erro é devolvido sem alteração.
	WithSymbolTx(ctx context.Context, symbol string, fn func(tx Tx) error) error
}

// Tx expõe as operações disponíveis dentro da unidade de trabalho.
type Tx interface {
	// MarkProcessed registra o trade como processado. Retorna false se o
	// trade já havia sido registrado antes (reentrega).
	MarkProcessed(ctx context.Context, tradeID int64, at time.Time) (bool, error)
	// OpenLots devolve os lotes com quantidade positiva em ordem FIFO
	// (created_at, id).
	OpenLots(ctx context.Context, symbol string) ([]domain.Lot, error)
	InsertLot(ctx context.Context, lot *domain.Lot) error
	UpdateLotQuantity(ctx context.Context, lotID, quantity int64) error
	DeleteLot(ctx context.Context, lotID int64) error
	InsertRealizedPnL(ctx context.Context, record *domain.RealizedPnL) error
}

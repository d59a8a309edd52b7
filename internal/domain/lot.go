package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot é uma unidade aberta de custo criada por uma compra.
type Lot struct {
	ID        int64           `db:"id" json:"id"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	CostPrice decimal.Decimal `db:"price" json:"cost_price"`
	TradeID   int64           `db:"trade_id" json:"trade_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// RealizedPnL registra o fechamento (total ou parcial) de um lote por uma venda.
type RealizedPnL struct {
	ID             int64           `db:"id" json:"id"`
	Symbol         string          `db:"symbol" json:"symbol"`
	QuantityClosed int64           `db:"quantity_closed" json:"quantity_closed"`
	CostBasisPrice decimal.Decimal `db:"avg_cost" json:"cost_basis_price"`
	SellPrice      decimal.Decimal `db:"sell_price" json:"sell_price"`
	RealizedPnL    decimal.Decimal `db:"realized_pnl" json:"realized_pnl"`
	TradeID        int64           `db:"trade_id" json:"trade_id"`
	LotID          int64           `db:"lot_id" json:"lot_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

func ComputePnL(sellPrice, costPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return sellPrice.Sub(costPrice).Mul(decimal.NewFromInt(quantity))
}

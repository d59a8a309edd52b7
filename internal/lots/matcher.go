package lots

import (
	"sort"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/shopspring/decimal"
)

// Close descreve o fechamento de parte (ou de todo) um lote.
type Close struct {
	Lot       domain.Lot
	Quantity  int64
	Remaining int64
	PnL       decimal.Decimal
}

// Plan é o resultado do casamento FIFO antes de qualquer escrita.
type Plan struct {
	Requested int64
	Matched   int64
	Closes    []Close
}

func (p Plan) Shortfall() int64 {
	return p.Requested - p.Matched
}

func (p Plan) Complete() bool {
	return p.Matched == p.Requested
}

func (p Plan) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Closes {
		total = total.Add(c.PnL)
	}
	return total
}

// SortFIFO ordena lotes por created_at e, no empate, por id.
func SortFIFO(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].CreatedAt.Before(lots[j].CreatedAt)
		}
		return lots[i].ID < lots[j].ID
	})
}

// MatchFIFO consome os lotes mais antigos primeiro até cobrir quantity.
// Não altera o slice recebido.
func MatchFIFO(open []domain.Lot, quantity int64, sellPrice decimal.Decimal) Plan {
	ordered := make([]domain.Lot, len(open))
	copy(ordered, open)
	SortFIFO(ordered)

	plan := Plan{Requested: quantity}
	remaining := quantity

	for _, lot := range ordered {
		if remaining <= 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}

		closeQty := min(remaining, lot.Quantity)
		plan.Closes = append(plan.Closes, Close{
			Lot:       lot,
			Quantity:  closeQty,
			Remaining: lot.Quantity - closeQty,
			PnL:       domain.ComputePnL(sellPrice, lot.CostPrice, closeQty),
		})
		plan.Matched += closeQty
		remaining -= closeQty
	}

	return plan
}

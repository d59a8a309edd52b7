package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AveragePlaces é a escala usada nas médias ponderadas dos relatórios.
const AveragePlaces = 6

type OpenPosition struct {
	Symbol          string          `json:"symbol"`
	TotalQuantity   int64           `json:"total_quantity"`
	WeightedAvgCost decimal.Decimal `json:"weighted_avg_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
}

type PnLSummary struct {
	Symbol              string          `json:"symbol"`
	TotalQuantityClosed int64           `json:"total_quantity_closed"`
	TotalRealizedPnL    decimal.Decimal `json:"total_realized_pnl"`
	AvgCost             decimal.Decimal `json:"avg_cost"`
	AvgSellPrice        decimal.Decimal `json:"avg_sell_price"`
}

// WeightedAverage devolve sum/quantity arredondado para AveragePlaces.
func WeightedAverage(sum decimal.Decimal, quantity int64) decimal.Decimal {
	if quantity == 0 {
		return decimal.Zero
	}
	return sum.DivRound(decimal.NewFromInt(quantity), AveragePlaces)
}

// AggregatePositions agrupa lotes abertos por símbolo, ordenado por símbolo.
func AggregatePositions(lots []Lot) []OpenPosition {
	index := make(map[string]*OpenPosition)
	for _, lot := range lots {
		if lot.Quantity <= 0 {
			continue
		}
		pos, ok := index[lot.Symbol]
		if !ok {
			pos = &OpenPosition{Symbol: lot.Symbol, TotalCost: decimal.Zero}
			index[lot.Symbol] = pos
		}
		pos.TotalQuantity += lot.Quantity
		pos.TotalCost = pos.TotalCost.Add(lot.CostPrice.Mul(decimal.NewFromInt(lot.Quantity)))
	}

	positions := make([]OpenPosition, 0, len(index))
	for _, pos := range index {
		pos.WeightedAvgCost = WeightedAverage(pos.TotalCost, pos.TotalQuantity)
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

// AggregateRealized agrupa registros de P&L realizado por símbolo. As médias
// de custo e de venda são ponderadas pela quantidade fechada.
func AggregateRealized(records []RealizedPnL) []PnLSummary {
	type acc struct {
		summary PnLSummary
		cost    decimal.Decimal
		sell    decimal.Decimal
	}

	index := make(map[string]*acc)
	for _, r := range records {
		a, ok := index[r.Symbol]
		if !ok {
			a = &acc{summary: PnLSummary{Symbol: r.Symbol, TotalRealizedPnL: decimal.Zero}}
			index[r.Symbol] = a
		}
		qty := decimal.NewFromInt(r.QuantityClosed)
		a.summary.TotalQuantityClosed += r.QuantityClosed
		a.summary.TotalRealizedPnL = a.summary.TotalRealizedPnL.Add(r.RealizedPnL)
		a.cost = a.cost.Add(r.CostBasisPrice.Mul(qty))
		a.sell = a.sell.Add(r.SellPrice.Mul(qty))
	}

	summaries := make([]PnLSummary, 0, len(index))
	for _, a := range index {
		a.summary.AvgCost = WeightedAverage(a.cost, a.summary.TotalQuantityClosed)
		a.summary.AvgSellPrice = WeightedAverage(a.sell, a.summary.TotalQuantityClosed)
		summaries = append(summaries, a.summary)
	}
	SortPnLSummaries(summaries)
	return summaries
}

// SortPnLSummaries ordena por P&L realizado decrescente e depois por símbolo.
func SortPnLSummaries(summaries []PnLSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if c := summaries[i].TotalRealizedPnL.Cmp(summaries[j].TotalRealizedPnL); c != 0 {
			return c > 0
		}
		return summaries[i].Symbol < summaries[j].Symbol
	})
}

func TotalRealized(records []RealizedPnL) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.RealizedPnL)
	}
	return total
}

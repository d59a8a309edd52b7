package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregatePositions(t *testing.T) {
	lots := []Lot{
		{ID: 1, Symbol: "MSFT", Quantity: 50, CostPrice: d("400")},
		{ID: 2, Symbol: "AAPL", Quantity: 20, CostPrice: d("150")},
		{ID: 3, Symbol: "AAPL", Quantity: 50, CostPrice: d("160")},
		{ID: 4, Symbol: "GOOGL", Quantity: 0, CostPrice: d("2800")},
	}

	positions := AggregatePositions(lots)

	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, int64(70), positions[0].TotalQuantity)
	assert.Equal(t, "11000", positions[0].TotalCost.String())
	assert.Equal(t, "157.142857", positions[0].WeightedAvgCost.String())
	assert.Equal(t, "MSFT", positions[1].Symbol)
	assert.Equal(t, "400", positions[1].WeightedAvgCost.String())
}

func TestAggregatePositionsEmpty(t *testing.T) {
	assert.Empty(t, AggregatePositions(nil))
}

func TestAggregateRealized(t *testing.T) {
	records := []RealizedPnL{
		{Symbol: "MSFT", QuantityClosed: 25, CostBasisPrice: d("400"), SellPrice: d("420"), RealizedPnL: d("500")},
		{Symbol: "AAPL", QuantityClosed: 100, CostBasisPrice: d("150"), SellPrice: d("170"), RealizedPnL: d("2000")},
		{Symbol: "AAPL", QuantityClosed: 20, CostBasisPrice: d("160"), SellPrice: d("170"), RealizedPnL: d("200")},
		{Symbol: "NVDA", QuantityClosed: 10, CostBasisPrice: d("500"), SellPrice: d("450"), RealizedPnL: d("-500")},
	}

	summaries := AggregateRealized(records)

	require.Len(t, summaries, 3)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"},
		[]string{summaries[0].Symbol, summaries[1].Symbol, summaries[2].Symbol})

	aapl := summaries[0]
	assert.Equal(t, int64(120), aapl.TotalQuantityClosed)
	assert.Equal(t, "2200", aapl.TotalRealizedPnL.String())
	assert.Equal(t, "151.666667", aapl.AvgCost.String())
	assert.Equal(t, "170", aapl.AvgSellPrice.String())

	assert.Equal(t, "2200", TotalRealized(records).String())
}

func TestSortPnLSummariesTieBreaksBySymbol(t *testing.T) {
	summaries := []PnLSummary{
		{Symbol: "MSFT", TotalRealizedPnL: d("10")},
		{Symbol: "AAPL", TotalRealizedPnL: d("10")},
		{Symbol: "GOOGL", TotalRealizedPnL: d("20")},
	}

	SortPnLSummaries(summaries)

	assert.Equal(t, "GOOGL", summaries[0].Symbol)
	assert.Equal(t, "AAPL", summaries[1].Symbol)
	assert.Equal(t, "MSFT", summaries[2].Symbol)
}

func TestWeightedAverage(t *testing.T) {
	assert.True(t, WeightedAverage(d("100"), 0).IsZero())
	assert.Equal(t, "33.333333", WeightedAverage(d("100"), 3).String())
}

func TestComputePnL(t *testing.T) {
	assert.Equal(t, "1600", ComputePnL(d("170"), d("150"), 80).String())
	assert.Equal(t, "-30", ComputePnL(d("7"), d("10"), 10).String())
}

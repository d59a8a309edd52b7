package transport

import (
	"testing"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionIsStable(t *testing.T) {
	for _, symbol := range []string{"AAPL", "MSFT", "GOOGL", "PETR4"} {
		p := Partition(symbol, 8)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 8)
		assert.Equal(t, p, Partition(symbol, 8), symbol)
	}

	assert.Equal(t, 0, Partition("AAPL", 1))
	assert.Equal(t, 0, Partition("AAPL", 0))
}

func TestPartitionSpreadsSymbols(t *testing.T) {
	used := make(map[int]bool)
	for _, symbol := range []string{"AAPL", "MSFT", "GOOGL", "PETR4", "VALE3", "ITUB4", "BBDC4", "NVDA", "AMZN", "META"} {
		used[Partition(symbol, 4)] = true
	}
	assert.Greater(t, len(used), 1)
}

func TestStreamKey(t *testing.T) {
	assert.Equal(t, "trades:3", StreamKey("trades", 3))
}

func TestEventCodec(t *testing.T) {
	event := domain.TradeEvent{
		ID:       42,
		Symbol:   "AAPL",
		Quantity: -80,
		Price:    decimal.RequireFromString("170.25"),
	}

	payload, err := encodeEvent(event)
	require.NoError(t, err)

	decoded, err := decodeEvent(map[string]interface{}{payloadField: payload})
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Symbol, decoded.Symbol)
	assert.Equal(t, event.Quantity, decoded.Quantity)
	assert.True(t, event.Price.Equal(decoded.Price))
}

func TestDecodeEventRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{name: "sem payload", values: map[string]interface{}{}},
		{name: "tipo errado", values: map[string]interface{}{payloadField: 12}},
		{name: "json malformado", values: map[string]interface{}{payloadField: "{"}},
		{name: "sem id", values: map[string]interface{}{payloadField: `{"symbol":"AAPL","quantity":1,"price":"1"}`}},
		{name: "quantidade zero", values: map[string]interface{}{payloadField: `{"id":1,"symbol":"AAPL","quantity":0,"price":"1"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEvent(tt.values)
			assert.ErrorIs(t, err, domain.ErrInvalidTrade)
		})
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDirect(t *testing.T) {
	repo := &fakeRepo{}
	processor := newFakeProcessor()
	svc := NewDirectTradeService(repo, processor)
	ts := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	result, err := svc.Submit(context.Background(), SubmitTradeInput{
		Symbol:    " aapl ",
		Quantity:  100,
		Price:     decimal.NewFromInt(150),
		Timestamp: ts,
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Trade.Symbol)
	assert.Equal(t, time.UTC, result.Trade.Timestamp.Location())
	assert.True(t, ts.Equal(result.Trade.Timestamp))
	assert.False(t, result.Queued)
	require.NotNil(t, result.Outcome)
	assert.NotNil(t, result.Outcome.Lot)
	assert.Equal(t, []int64{result.Trade.ID}, processor.calls)
}

func TestSubmitDefaultsTimestamp(t *testing.T) {
	svc := NewDirectTradeService(&fakeRepo{}, newFakeProcessor())
	fixed := time.Date(2024, time.May, 5, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: 1, Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, fixed, result.Trade.Timestamp)
}

func TestSubmitRejectsInvalidBeforePersisting(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewDirectTradeService(repo, newFakeProcessor())

	_, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: 0, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrZeroQuantity)

	_, err = svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: 1, Price: decimal.RequireFromString("1.001")})
	assert.ErrorIs(t, err, domain.ErrInvalidTrade)

	assert.Zero(t, repo.count())
}

func TestSubmitDirectInsufficientInventoryKeepsTrade(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewDirectTradeService(repo, newFakeProcessor())

	result, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: -30, Price: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	require.NotNil(t, result)
	assert.Positive(t, result.Trade.ID)
	assert.Nil(t, result.Outcome)
	assert.Equal(t, 1, repo.count())
}

func TestSubmitRepositoryError(t *testing.T) {
	boom := errors.New("conexão perdida")
	processor := newFakeProcessor()
	svc := NewDirectTradeService(&fakeRepo{err: boom}, processor)

	_, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: 1, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, processor.calls)
}

func TestSubmitQueued(t *testing.T) {
	publisher := &fakePublisher{}
	svc := NewQueuedTradeService(&fakeRepo{}, publisher)

	result, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "MSFT", Quantity: -5, Price: decimal.NewFromInt(420)})
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.Equal(t, "1-0", result.EntryID)
	assert.Nil(t, result.Outcome)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, result.Trade.ID, publisher.events[0].ID)
	assert.Equal(t, int64(-5), publisher.events[0].Quantity)
}

func TestSubmitQueuedPublishError(t *testing.T) {
	boom := errors.New("stream indisponível")
	svc := NewQueuedTradeService(&fakeRepo{}, &fakePublisher{err: boom})

	result, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "MSFT", Quantity: 5, Price: decimal.NewFromInt(420)})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.False(t, result.Queued)
}

func TestListClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultTradeLimit},
		{-1, defaultTradeLimit},
		{50, 50},
		{5000, maxTradeLimit},
	}

	for _, tt := range tests {
		repo := &fakeRepo{}
		svc := NewDirectTradeService(repo, newFakeProcessor())

		_, err := svc.List(context.Background(), domain.TradeFilter{Symbol: "aapl", Limit: tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, repo.filter.Limit)
		assert.Equal(t, "AAPL", repo.filter.Symbol)
	}
}

func TestGetTrade(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewDirectTradeService(repo, newFakeProcessor())

	result, err := svc.Submit(context.Background(), SubmitTradeInput{Symbol: "AAPL", Quantity: 1, Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), result.Trade.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)

	_, err = svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

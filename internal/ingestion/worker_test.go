package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolPreservesOrderPerSymbol(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]int)

	pool := NewWorkerPool(4, func(_ context.Context, trade ParsedTrade) error {
		mu.Lock()
		defer mu.Unlock()
		seen[trade.Symbol] = append(seen[trade.Symbol], trade.Line)
		return nil
	})

	symbols := []string{"AAPL", "MSFT", "GOOGL", "PETR4", "VALE3"}
	total := 200
	results := make(chan JobResult, total)

	pool.Start(context.Background())
	for i := 0; i < total; i++ {
		pool.Submit(Job{
			Trade:  ParsedTrade{Line: i + 2, Symbol: symbols[i%len(symbols)]},
			Result: results,
		})
	}
	pool.Stop()
	close(results)

	count := 0
	for r := range results {
		assert.NoError(t, r.Error)
		count++
	}
	assert.Equal(t, total, count)

	for symbol, lines := range seen {
		assert.IsIncreasing(t, lines, "ordem de %s", symbol)
	}
}

func TestWorkerPoolReportsErrors(t *testing.T) {
	pool := NewWorkerPool(2, func(_ context.Context, trade ParsedTrade) error {
		if trade.Symbol == "BAD" {
			return fmt.Errorf("recusado: %w", errors.ErrUnsupported)
		}
		return nil
	})

	results := make(chan JobResult, 3)
	pool.Start(context.Background())
	pool.Submit(Job{Trade: ParsedTrade{Line: 2, Symbol: "AAPL"}, Result: results})
	pool.Submit(Job{Trade: ParsedTrade{Line: 3, Symbol: "BAD"}, Result: results})
	pool.Submit(Job{Trade: ParsedTrade{Line: 4, Symbol: "MSFT"}, Result: results})
	pool.Stop()
	close(results)

	var failed []JobResult
	for r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Line)
	assert.Equal(t, "BAD", failed[0].Symbol)
}

func TestWorkerPoolCancelledContext(t *testing.T) {
	called := false
	pool := NewWorkerPool(1, func(context.Context, ParsedTrade) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := make(chan JobResult, 1)
	pool.Start(ctx)
	pool.Submit(Job{Trade: ParsedTrade{Line: 2, Symbol: "AAPL"}, Result: results})
	pool.Stop()

	r := <-results
	assert.ErrorIs(t, r.Error, context.Canceled)
	assert.False(t, called)
}

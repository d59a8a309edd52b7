package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/internal/storage/cache"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	mu     sync.Mutex
	trades []domain.Trade
	err    error
	filter domain.TradeFilter
}

func (r *fakeRepo) CreateTrade(_ context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	trade.ID = int64(len(r.trades) + 1)
	trade.CreatedAt = time.Now().UTC()
	r.trades = append(r.trades, *trade)
	return nil
}

func (r *fakeRepo) GetTrade(_ context.Context, id int64) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, domain.ErrTradeNotFound
}

func (r *fakeRepo) ListTrades(_ context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = filter
	return r.trades, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

// fakeProcessor mantém apenas o saldo por símbolo.
type fakeProcessor struct {
	mu       sync.Mutex
	balances map[string]int64
	calls    []int64
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{balances: make(map[string]int64)}
}

func (p *fakeProcessor) ProcessTrade(_ context.Context, symbol string, quantity int64, price decimal.Decimal, tradeID int64) (*lots.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, tradeID)

	if quantity < 0 && p.balances[symbol] < -quantity {
		return nil, &domain.InsufficientInventoryError{Symbol: symbol, Requested: -quantity, Available: p.balances[symbol]}
	}
	p.balances[symbol] += quantity

	outcome := &lots.Outcome{TradeID: tradeID, Symbol: symbol, Side: lots.SideSell}
	if quantity > 0 {
		outcome.Side = lots.SideBuy
		outcome.Lot = &domain.Lot{ID: tradeID, Symbol: symbol, Quantity: quantity, CostPrice: price, TradeID: tradeID}
	}
	return outcome, nil
}

type fakePublisher struct {
	events []domain.TradeEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event domain.TradeEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "1-0", nil
}

type fakeReader struct {
	positions []domain.OpenPosition
	summary   []domain.PnLSummary
	total     decimal.Decimal
	records   []domain.RealizedPnL
	lots      []domain.Lot
	calls     map[string]int
	symbols   []string
}

func (r *fakeReader) hit(name string) {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[name]++
}

func (r *fakeReader) OpenPositions(context.Context) ([]domain.OpenPosition, error) {
	r.hit("positions")
	return r.positions, nil
}

func (r *fakeReader) RealizedPnLSummary(context.Context) ([]domain.PnLSummary, error) {
	r.hit("pnl")
	return r.summary, nil
}

func (r *fakeReader) TotalRealizedPnL(context.Context) (decimal.Decimal, error) {
	r.hit("total")
	return r.total, nil
}

func (r *fakeReader) RealizedBySymbol(_ context.Context, symbol string) ([]domain.RealizedPnL, error) {
	r.hit("by_symbol")
	r.symbols = append(r.symbols, symbol)
	return r.records, nil
}

func (r *fakeReader) ListOpenLots(_ context.Context, symbol string) ([]domain.Lot, error) {
	r.hit("lots")
	r.symbols = append(r.symbols, symbol)
	return r.lots, nil
}

// memoryCache imita o RedisCache serializando em JSON.
type memoryCache struct {
	data       map[string][]byte
	versions   map[string]int64
	versionErr error
	bumpErr    error
	deleteErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), versions: make(map[string]int64)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ ...time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memoryCache) Version(_ context.Context, key string) (int64, error) {
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	return c.versions[key], nil
}

func (c *memoryCache) Bump(_ context.Context, key string) (int64, error) {
	if c.bumpErr != nil {
		return 0, c.bumpErr
	}
	c.versions[key]++
	return c.versions[key], nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	csvData := `symbol;quantity;price;timestamp
AAPL;100;150.00;2024-01-02T14:30:00Z
aapl ;50;160,50;2024-01-03 10:00:00
MSFT;-25;420;2024-01-04
GOOGL;0;2800;
NVDA;abc;10;
PETR4;10;38.123;
VALE3;5;62.10;
`
	parser := NewParser(2, 3)

	result, err := parser.ParseFile(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)

	require.Len(t, result.Trades, 4)
	assert.Equal(t, []int{2, 3, 4, 8}, []int{
		result.Trades[0].Line, result.Trades[1].Line, result.Trades[2].Line, result.Trades[3].Line,
	})

	first := result.Trades[0]
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, int64(100), first.Quantity)
	assert.Equal(t, time.Date(2024, time.January, 2, 14, 30, 0, 0, time.UTC), first.Timestamp)

	second := result.Trades[1]
	assert.Equal(t, "AAPL", second.Symbol)
	assert.Equal(t, "160.5", second.Price.String())

	assert.Equal(t, int64(-25), result.Trades[2].Quantity)
	assert.True(t, result.Trades[3].Timestamp.IsZero())

	require.Len(t, result.Errors, 3)
	var lines []int
	for _, e := range result.Errors {
		assert.ErrorIs(t, e, domain.ErrInvalidTrade)
		lines = append(lines, lineOf(e))
	}
	assert.Equal(t, []int{5, 6, 7}, lines)
	assert.ErrorIs(t, result.Errors[0], domain.ErrZeroQuantity)
}

func TestParseFileEmpty(t *testing.T) {
	parser := NewParser(10, 2)

	result, err := parser.ParseFile(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.Empty(t, result.Errors)

	result, err = parser.ParseFile(context.Background(), strings.NewReader("symbol;quantity;price;timestamp\n"))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestParseFileCancelled(t *testing.T) {
	parser := NewParser(10, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.ParseFile(ctx, strings.NewReader(generateTestCSV(1000)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  []string
		wantErr bool
	}{
		{name: "completo", record: []string{"AAPL", "10", "1.5", "2024-01-01"}},
		{name: "sem timestamp", record: []string{"AAPL", "10", "1.5"}},
		{name: "poucos campos", record: []string{"AAPL", "10"}, wantErr: true},
		{name: "timestamp inválido", record: []string{"AAPL", "10", "1.5", "ontem"}, wantErr: true},
		{name: "preço inválido", record: []string{"AAPL", "10", "x"}, wantErr: true},
		{name: "símbolo longo", record: []string{"ABCDEFGHIJKL", "10", "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade, err := ParseRecord(tt.record)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidTrade)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "AAPL", trade.Symbol)
		})
	}
}

func BenchmarkParser(b *testing.B) {

	csvData := generateTestCSV(100000)

	benchmarks := []struct {
		name      string
		batchSize int
		workers   int
	}{
		{"SingleWorker", 1000, 1},
		{"FourWorkers", 1000, 4},
		{"EightWorkers", 1000, 8},
		{"LargeBatch", 10000, 4},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			parser := NewParser(bm.batchSize, bm.workers)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				reader := bytes.NewReader([]byte(csvData))
				ctx := context.Background()

				_, err := parser.ParseFile(ctx, reader)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func generateTestCSV(lines int) string {
	var sb strings.Builder
	sb.WriteString("symbol;quantity;price;timestamp\n")

	tickers := []string{"PETR4", "VALE3", "ITUB4", "BBDC4"}

	for i := 0; i < lines; i++ {
		ticker := tickers[i%len(tickers)]
		price := fmt.Sprintf("%.2f", float64(20+i%30))
		quantity := 100 + i%1000
		if i%3 == 2 {
			quantity = -quantity / 2
		}

		sb.WriteString(fmt.Sprintf(
			"%s;%d;%s;2024-01-15 15:30:00\n",
			ticker, quantity, price,
		))
	}

	return sb.String()
}

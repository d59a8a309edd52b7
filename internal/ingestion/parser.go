package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/shopspring/decimal"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsedTrade é uma linha válida do arquivo; Line preserva a ordem do arquivo.
type ParsedTrade struct {
	Line      int
	Symbol    string
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time
}

type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("linha %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type Parser struct {
	batchSize int
	workers   int
}

func NewParser(batchSize, workers int) *Parser {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
	}
}

type ParseResult struct {
	Trades []ParsedTrade
	Errors []error
}

type numberedRecord struct {
	line   int
	fields []string
}

// ParseFile lê um CSV "symbol;quantity;price;timestamp" com cabeçalho. As
// linhas são convertidas em paralelo e devolvidas na ordem do arquivo.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = ';'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	if _, err := csvReader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseResult{Trades: []ParsedTrade{}, Errors: []error{}}, nil
		}
		return nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}

	jobs := make(chan numberedRecord, p.workers*2)
	results := make(chan *ParseResult, p.workers)
	readErrs := make([]error, 0)

	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)

		for {
			if ctx.Err() != nil {
				return
			}
			record, err := csvReader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				line := 0
				if errors.As(err, &parseErr) {
					line = parseErr.Line
				}
				readErrs = append(readErrs, &LineError{Line: line, Err: err})
				continue
			}
			line, _ := csvReader.FieldPos(0)
			select {
			case jobs <- numberedRecord{line: line, fields: record}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	finalResult := &ParseResult{
		Trades: make([]ParsedTrade, 0, p.batchSize),
		Errors: make([]error, 0),
	}

	for result := range results {
		finalResult.Trades = append(finalResult.Trades, result.Trades...)
		finalResult.Errors = append(finalResult.Errors, result.Errors...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// results só fecha depois que jobs fechou, então readErrs não muda mais.
	finalResult.Errors = append(finalResult.Errors, readErrs...)

	sort.Slice(finalResult.Trades, func(i, j int) bool {
		return finalResult.Trades[i].Line < finalResult.Trades[j].Line
	})
	sort.SliceStable(finalResult.Errors, func(i, j int) bool {
		return lineOf(finalResult.Errors[i]) < lineOf(finalResult.Errors[j])
	})

	return finalResult, nil
}

func (p *Parser) worker(ctx context.Context, jobs <-chan numberedRecord,
	results chan<- *ParseResult, wg *sync.WaitGroup) {

	defer wg.Done()

	batch := &ParseResult{
		Trades: make([]ParsedTrade, 0, p.batchSize),
	}

	for {
		select {
		case <-ctx.Done():
			if len(batch.Trades) > 0 || len(batch.Errors) > 0 {
				results <- batch
			}
			return

		case record, ok := <-jobs:
			if !ok {
				if len(batch.Trades) > 0 || len(batch.Errors) > 0 {
					results <- batch
				}
				return
			}

			trade, err := ParseRecord(record.fields)
			if err != nil {
				batch.Errors = append(batch.Errors, &LineError{Line: record.line, Err: err})
				continue
			}
			trade.Line = record.line

			batch.Trades = append(batch.Trades, *trade)

			if len(batch.Trades) >= p.batchSize {
				results <- batch
				batch = &ParseResult{
					Trades: make([]ParsedTrade, 0, p.batchSize),
				}
			}
		}
	}
}

// ParseRecord converte os campos de uma linha. Aceita vírgula como separador
// decimal no preço e timestamp vazio.
func ParseRecord(record []string) (*ParsedTrade, error) {
	if len(record) < 3 {
		return nil, fmt.Errorf("%w: registro com %d campos", domain.ErrInvalidTrade, len(record))
	}

	symbol := domain.NormalizeSymbol(record[0])

	quantity, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quantidade inválida %q", domain.ErrInvalidTrade, record[1])
	}

	priceStr := strings.Replace(strings.TrimSpace(record[2]), ",", ".", 1)
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("%w: preço inválido %q", domain.ErrInvalidTrade, record[2])
	}

	var timestamp time.Time
	if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
		timestamp, err = parseTimestamp(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, err
		}
	}

	if err := domain.ValidateTrade(symbol, quantity, price); err != nil {
		return nil, err
	}

	return &ParsedTrade{
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		Timestamp: timestamp,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp inválido %q", domain.ErrInvalidTrade, value)
}

func lineOf(err error) int {
	var lineErr *LineError
	if errors.As(err, &lineErr) {
		return lineErr.Line
	}
	return 0
}

package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jeovahfialho/lotwise/internal/ingestion"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"go.uber.org/zap"
)

type IngestionService struct {
	parser  *ingestion.Parser
	trades  *TradeService
	workers int
}

func NewIngestionService(parser *ingestion.Parser, trades *TradeService, workers int) *IngestionService {
	return &IngestionService{
		parser:  parser,
		trades:  trades,
		workers: workers,
	}
}

type ImportResult struct {
	Source   string   `json:"source"`
	Parsed   int      `json:"parsed"`
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *IngestionService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir arquivo: %w", err)
	}
	defer file.Close()

	return s.Import(ctx, path, file)
}

// Import lê o CSV e submete cada trade válido. Linhas inválidas e trades
// recusados são contados em Rejected sem interromper o restante.
func (s *IngestionService) Import(ctx context.Context, source string, reader io.Reader) (*ImportResult, error) {
	logger.Info("processando arquivo", zap.String("source", source))

	parsed, err := s.parser.ParseFile(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("erro no parse: %w", err)
	}

	result := &ImportResult{
		Source: source,
		Parsed: len(parsed.Trades),
	}
	for _, parseErr := range parsed.Errors {
		result.Rejected++
		result.Errors = append(result.Errors, parseErr.Error())
	}

	pool := ingestion.NewWorkerPool(s.workers, func(ctx context.Context, trade ingestion.ParsedTrade) error {
		_, err := s.trades.Submit(ctx, SubmitTradeInput{
			Symbol:    trade.Symbol,
			Quantity:  trade.Quantity,
			Price:     trade.Price,
			Timestamp: trade.Timestamp,
		})
		return err
	})

	results := make(chan ingestion.JobResult, len(parsed.Trades))
	pool.Start(ctx)
	for _, trade := range parsed.Trades {
		pool.Submit(ingestion.Job{Trade: trade, Result: results})
	}
	pool.Stop()
	close(results)

	failures := make([]ingestion.JobResult, 0)
	for r := range results {
		if r.Error != nil {
			failures = append(failures, r)
			continue
		}
		result.Imported++
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Line < failures[j].Line })
	for _, f := range failures {
		result.Rejected++
		result.Errors = append(result.Errors, fmt.Sprintf("linha %d (%s): %v", f.Line, f.Symbol, f.Error))
	}

	logger.Info("arquivo processado",
		zap.String("source", source),
		zap.Int("parsed", result.Parsed),
		zap.Int("imported", result.Imported),
		zap.Int("rejected", result.Rejected))

	return result, nil
}

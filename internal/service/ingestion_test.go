package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeovahfialho/lotwise/internal/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importCSV = `symbol;quantity;price;timestamp
AAPL;100;150;2024-01-01
AAPL;50;160;2024-01-02
MSFT;10;400;2024-01-02
AAPL;-80;170;2024-01-03
MSFT;-20;410;2024-01-04
GOOGL;0;2800;2024-01-04
`

func TestImport(t *testing.T) {
	repo := &fakeRepo{}
	processor := newFakeProcessor()
	svc := NewIngestionService(ingestion.NewParser(100, 2), NewDirectTradeService(repo, processor), 3)

	result, err := svc.Import(context.Background(), "trades.csv", strings.NewReader(importCSV))
	require.NoError(t, err)

	assert.Equal(t, "trades.csv", result.Source)
	assert.Equal(t, 5, result.Parsed)
	assert.Equal(t, 4, result.Imported)
	assert.Equal(t, 2, result.Rejected)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "linha 7")
	assert.Contains(t, result.Errors[1], "linha 6 (MSFT)")

	assert.Equal(t, int64(70), processor.balances["AAPL"])
	assert.Equal(t, int64(10), processor.balances["MSFT"])
	assert.Equal(t, 5, repo.count())
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte(importCSV), 0o644))

	svc := NewIngestionService(ingestion.NewParser(100, 2), NewDirectTradeService(&fakeRepo{}, newFakeProcessor()), 2)

	result, err := svc.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, 4, result.Imported)

	_, err = svc.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/lotwise/internal/service"
)

// Ao final: AAPL com 70 ações e P&L 1600, GOOGL com 25, MSFT com 50 e P&L 500.
var seedTrades = []service.SubmitTradeInput{
	{Symbol: "AAPL", Quantity: 100, Price: decimal.NewFromInt(150), Timestamp: seedDay(1)},
	{Symbol: "AAPL", Quantity: 50, Price: decimal.NewFromInt(160), Timestamp: seedDay(2)},
	{Symbol: "AAPL", Quantity: -80, Price: decimal.NewFromInt(170), Timestamp: seedDay(3)},
	{Symbol: "GOOGL", Quantity: 25, Price: decimal.NewFromInt(2800), Timestamp: seedDay(4)},
	{Symbol: "MSFT", Quantity: 75, Price: decimal.NewFromInt(400), Timestamp: seedDay(5)},
	{Symbol: "MSFT", Quantity: -25, Price: decimal.NewFromInt(420), Timestamp: seedDay(6)},
}

func seedDay(day int) time.Time {
	return time.Date(2024, time.January, day, 14, 30, 0, 0, time.UTC)
}

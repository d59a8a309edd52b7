package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jeovahfialho/lotwise/internal/app"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/service"
	"github.com/jeovahfialho/lotwise/internal/storage/cache"
	"github.com/jeovahfialho/lotwise/internal/storage/postgres"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "lotwise",
		Short: "Lotwise CLI",
		Long: `CLI do lotwise: contabilidade de lotes FIFO e P&L realizado.
Permite migrar o banco, registrar e importar trades e consultar posições.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return logger.Init(level, "console", true)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Nível de log (debug, info, warn, error)")

	// Comando migrate
	var migrateCmd = &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Cria ou remove as tabelas no PostgreSQL",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(args[0])
		},
	}

	// Comando seed
	var seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Registra o cenário de demonstração (AAPL, GOOGL, MSFT)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed()
		},
	}

	// Comando import
	var importCmd = &cobra.Command{
		Use:   "import [files...]",
		Short: "Importa arquivos CSV de trades",
		Long: `Importa arquivos CSV no formato symbol;quantity;price;timestamp.
Aceita múltiplos arquivos e suporta wildcards (ex: data/*.csv)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importFiles(args)
		},
	}

	// Comando trade
	var tradeCmd = &cobra.Command{
		Use:   "trade [symbol] [quantity] [price]",
		Short: "Registra um trade (quantidade negativa para venda)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			timestamp, _ := cmd.Flags().GetString("timestamp")
			return submitTrade(args[0], args[1], args[2], timestamp)
		},
	}
	tradeCmd.Flags().StringP("timestamp", "t", "", "Timestamp RFC3339 do trade (padrão: agora)")

	// Comando positions
	var positionsCmd = &cobra.Command{
		Use:   "positions",
		Short: "Lista posições abertas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPositions()
		},
	}

	// Comando pnl
	var pnlCmd = &cobra.Command{
		Use:   "pnl",
		Short: "Mostra o P&L realizado por símbolo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPnL()
		},
	}

	// Comando health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde do sistema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(migrateCmd, seedCmd, importCmd, tradeCmd, positionsCmd, pnlCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx := context.Background()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func migrate(direction string) error {
	ctx := context.Background()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	if cfg.StoreDriver != config.StorePostgres {
		fmt.Println("ℹ️  SQLite cria o schema ao abrir o banco; nada a migrar.")
		return nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	switch direction {
	case "up":
		fmt.Println("🔄 Criando tabelas...")
		err = db.MigrateUp(ctx)
	case "down":
		fmt.Println("🔄 Removendo tabelas...")
		err = db.MigrateDown(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Println("✅ Migração concluída!")
	return nil
}

func seed() error {
	return withApp(func(ctx context.Context, a *app.App) error {
		fmt.Printf("🌱 Registrando %d trades de demonstração...\n\n", len(seedTrades))

		for _, in := range seedTrades {
			result, err := a.Trades.Submit(ctx, in)
			if err != nil {
				return fmt.Errorf("erro ao registrar %s %d: %w", in.Symbol, in.Quantity, err)
			}
			printSubmit(result)
		}

		if a.Config.DispatchMode == config.DispatchStream {
			fmt.Println("\nℹ️  Trades enfileirados; o worker aplicará os lotes.")
			return nil
		}

		fmt.Println()
		return printPositions(ctx, a.Portfolio)
	})
}

func importFiles(patterns []string) error {
	files := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("padrão inválido %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		files = append(files, matches...)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		fmt.Printf("📥 Importando %d arquivo(s)...\n\n", len(files))
		timer := metrics.NewTimer()

		var imported, rejected int
		for _, file := range files {
			result, err := a.Ingestion.ImportFile(ctx, file)
			if err != nil {
				fmt.Printf("❌ Erro em %s: %v\n", file, err)
				continue
			}
			fmt.Printf("✅ %s: %d importados, %d rejeitados\n", file, result.Imported, result.Rejected)
			for _, msg := range result.Errors {
				fmt.Printf("   - %s\n", msg)
			}
			imported += result.Imported
			rejected += result.Rejected
		}

		fmt.Printf("\n📊 Total: %d importados, %d rejeitados em %s\n", imported, rejected, timer.Elapsed().Round(time.Millisecond))
		return nil
	})
}

func submitTrade(symbol, quantityStr, priceStr, timestampStr string) error {
	quantity, err := strconv.ParseInt(quantityStr, 10, 64)
	if err != nil {
		return fmt.Errorf("quantidade inválida: %s", quantityStr)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return fmt.Errorf("preço inválido: %s", priceStr)
	}

	in := service.SubmitTradeInput{Symbol: symbol, Quantity: quantity, Price: price}
	if timestampStr != "" {
		in.Timestamp, err = time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			return fmt.Errorf("timestamp inválido (use RFC3339): %w", err)
		}
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		result, err := a.Trades.Submit(ctx, in)
		var shortfall *domain.InsufficientInventoryError
		if errors.As(err, &shortfall) {
			fmt.Printf("❌ Venda rejeitada: %s possui %d ações, solicitado %d\n",
				shortfall.Symbol, shortfall.Available, shortfall.Requested)
			return err
		}
		if err != nil {
			return err
		}
		printSubmit(result)
		return nil
	})
}

func showPositions() error {
	return withApp(func(ctx context.Context, a *app.App) error {
		return printPositions(ctx, a.Portfolio)
	})
}

func showPnL() error {
	return withApp(func(ctx context.Context, a *app.App) error {
		summary, err := a.Portfolio.GetRealizedPnLSummary(ctx)
		if err != nil {
			return err
		}
		total, err := a.Portfolio.GetTotalRealizedPnL(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%-10s %12s %14s %14s %14s\n", "SYMBOL", "QTY CLOSED", "AVG COST", "AVG SELL", "REALIZED")
		for _, s := range summary {
			fmt.Printf("%-10s %12d %14s %14s %14s\n",
				s.Symbol, s.TotalQuantityClosed,
				s.AvgCost.StringFixed(2), s.AvgSellPrice.StringFixed(2), s.TotalRealizedPnL.StringFixed(2))
		}
		fmt.Printf("\n💰 P&L realizado total: %s\n", total.StringFixed(2))
		return nil
	})
}

func checkHealth() error {
	ctx := context.Background()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	fmt.Println("🏥 Verificando saúde do sistema...")
	fmt.Println()

	fmt.Printf("Store (%s): ", cfg.StoreDriver)
	cfg.DispatchMode = config.DispatchDirect
	cfg.CacheEnabled = false
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		defer a.Close()
		if err := a.Store.HealthCheck(ctx); err != nil {
			fmt.Printf("❌ Erro: %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Print("Redis: ")
	client, err := cache.NewClient(cfg)
	if err != nil {
		fmt.Printf("❌ Não disponível: %v\n", err)
	} else {
		defer client.Close()
		fmt.Println("✅ OK")
	}

	fmt.Println()
	fmt.Println("✅ Verificação concluída!")
	return nil
}

func printSubmit(result *service.SubmitResult) {
	t := result.Trade
	switch {
	case result.Queued:
		side := "venda"
		if t.IsBuy() {
			side = "compra"
		}
		fmt.Printf("📨 #%d %s %s %d @ %s enfileirada (%s)\n", t.ID, side, t.Symbol, t.Quantity, t.Price.StringFixed(2), result.EntryID)
	case result.Outcome != nil && result.Outcome.Lot != nil:
		fmt.Printf("🟢 #%d %s %d @ %s → lote %d\n", t.ID, t.Symbol, t.Quantity, t.Price.StringFixed(2), result.Outcome.Lot.ID)
	case result.Outcome != nil:
		fmt.Printf("🔴 #%d %s %d @ %s → %d lote(s), P&L %s\n", t.ID, t.Symbol, t.Quantity, t.Price.StringFixed(2),
			len(result.Outcome.Realized), result.Outcome.RealizedPnL().StringFixed(2))
	default:
		fmt.Printf("#%d %s %d @ %s\n", t.ID, t.Symbol, t.Quantity, t.Price.StringFixed(2))
	}
}

func printPositions(ctx context.Context, portfolio *service.PortfolioService) error {
	positions, err := portfolio.GetOpenPositions(ctx)
	if err != nil {
		return err
	}

	total := decimal.Zero
	fmt.Printf("%-10s %12s %14s %16s\n", "SYMBOL", "QUANTITY", "AVG COST", "TOTAL COST")
	for _, p := range positions {
		fmt.Printf("%-10s %12d %14s %16s\n", p.Symbol, p.TotalQuantity, p.WeightedAvgCost.StringFixed(2), p.TotalCost.StringFixed(2))
		total = total.Add(p.TotalCost)
	}
	fmt.Printf("\n📊 Valor total a custo: %s\n", total.StringFixed(2))
	return nil
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/lotwise/internal/app"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/pkg/logger"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment()); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer logger.Close()

	// O worker sempre consome do stream, independente do modo da API.
	cfg.DispatchMode = config.DispatchStream

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := app.New(initCtx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("erro ao inicializar dependências", zap.Error(err))
	}
	defer deps.Close()

	consumer, err := deps.Consumer()
	if err != nil {
		logger.Fatal("erro ao criar consumidor", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker iniciado",
		zap.String("stream", cfg.StreamName),
		zap.Int("partitions", cfg.StreamPartitions),
		zap.String("store", cfg.StoreDriver))

	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("erro no consumidor", zap.Error(err))
	}

	logger.Info("worker encerrado")
}

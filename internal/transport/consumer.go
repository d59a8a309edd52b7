package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/internal/lots"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"github.com/jpillora/backoff"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const readCount = 16

// Processor aplica um evento de trade. Implementado por lots.Engine.
type Processor interface {
	ProcessEvent(ctx context.Context, event domain.TradeEvent) (*lots.Outcome, error)
}

type Decision int

const (
	DecisionAck Decision = iota
	DecisionRetry
	DecisionDeadLetter
)

func (d Decision) String() string {
	switch d {
	case DecisionAck:
		return "ack"
	case DecisionRetry:
		return "retry"
	case DecisionDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Decide escolhe o destino de uma mensagem após a tentativa número attempt.
// Inventário insuficiente e payload inválido não melhoram com nova tentativa.
func Decide(err error, attempt, maxAttempts int) Decision {
	switch {
	case err == nil:
		return DecisionAck
	case errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrInvalidTrade),
		errors.Is(err, domain.ErrZeroQuantity):
		return DecisionDeadLetter
	case attempt >= maxAttempts:
		return DecisionDeadLetter
	default:
		return DecisionRetry
	}
}

type ConsumerOptions struct {
	Stream      string
	Partitions  int
	Group       string
	Name        string
	DeadLetter  string
	Block       time.Duration
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

func OptionsFromConfig(cfg *config.Config) ConsumerOptions {
	name := cfg.ConsumerName
	if name == "" {
		host, _ := os.Hostname()
		name = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	return ConsumerOptions{
		Stream:      cfg.StreamName,
		Partitions:  cfg.StreamPartitions,
		Group:       cfg.ConsumerGroup,
		Name:        name,
		DeadLetter:  cfg.DeadLetterStream,
		Block:       cfg.WorkerBlockTimeout,
		MaxAttempts: cfg.WorkerMaxAttempts,
		BackoffMin:  cfg.WorkerBackoffMin,
		BackoffMax:  cfg.WorkerBackoffMax,
	}
}

type Consumer struct {
	client    *redis.Client
	processor Processor
	opts      ConsumerOptions
	log       *zap.Logger
}

func NewConsumer(client *redis.Client, processor Processor, opts ConsumerOptions) *Consumer {
	return &Consumer{
		client:    client,
		processor: processor,
		opts:      opts,
		log:       logger.Named("consumer").With(zap.String("consumer", opts.Name)),
	}
}

// Run cria os consumer groups e consome todas as partições até o contexto
// ser cancelado. Cada partição tem uma única goroutine, o que preserva a
// ordem dos trades de um mesmo símbolo.
func (c *Consumer) Run(ctx context.Context) error {
	streams := make([]string, c.opts.Partitions)
	for p := range streams {
		streams[p] = StreamKey(c.opts.Stream, p)
		if err := c.ensureGroup(ctx, streams[p]); err != nil {
			return err
		}
	}

	c.log.Info("consumidor iniciado",
		zap.String("group", c.opts.Group),
		zap.Int("partitions", c.opts.Partitions))

	var wg conc.WaitGroup
	for _, stream := range streams {
		stream := stream
		wg.Go(func() {
			c.consumePartition(ctx, stream)
		})
	}
	wg.Wait()

	c.log.Info("consumidor finalizado")
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.opts.Group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("erro ao criar consumer group em %s: %w", stream, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// consumePartition começa pelas entradas pendentes deste consumidor (id "0")
// e, quando elas acabam, passa a ler entradas novas (">").
func (c *Consumer) consumePartition(ctx context.Context, stream string) {
	log := c.log.With(zap.String("stream", stream))
	start, draining := "0", true
	retry := &backoff.Backoff{Min: c.opts.BackoffMin, Max: c.opts.BackoffMax, Factor: 2, Jitter: true}

	for ctx.Err() == nil {
		result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.opts.Group,
			Consumer: c.opts.Name,
			Streams:  []string{stream, start},
			Count:    readCount,
			Block:    c.opts.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := retry.Duration()
			log.Error("erro ao ler stream", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		retry.Reset()

		count := 0
		for _, s := range result {
			for _, msg := range s.Messages {
				count++
				if !c.handle(ctx, stream, msg) {
					return
				}
				if draining {
					start = msg.ID
				}
			}
		}

		if draining && count == 0 {
			log.Debug("pendências drenadas, lendo novas entradas")
			start = ">"
			draining = false
		}
	}
}

// handle processa uma mensagem até ack ou dead-letter. Devolve false se o
// contexto foi cancelado antes disso; a mensagem continua pendente.
func (c *Consumer) handle(ctx context.Context, stream string, msg redis.XMessage) bool {
	log := c.log.With(zap.String("stream", stream), zap.String("entry_id", msg.ID))

	event, err := decodeEvent(msg.Values)
	if err != nil {
		log.Warn("payload inválido", zap.Error(err))
		metrics.RecordStreamMessage("invalid")
		return c.deadLetter(ctx, stream, msg, err, 1)
	}

	retry := &backoff.Backoff{Min: c.opts.BackoffMin, Max: c.opts.BackoffMax, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		outcome, err := c.processor.ProcessEvent(ctx, event)
		if err != nil && ctx.Err() != nil {
			return false
		}

		switch Decide(err, attempt, c.opts.MaxAttempts) {
		case DecisionAck:
			status := "processed"
			if outcome != nil && outcome.Duplicate {
				status = "duplicate"
			}
			metrics.RecordStreamMessage(status)
			return c.ack(ctx, stream, msg.ID)

		case DecisionDeadLetter:
			log.Warn("trade enviado para dead-letter",
				zap.Int64("trade_id", event.ID),
				zap.String("symbol", event.Symbol),
				zap.Int("attempts", attempt),
				zap.Error(err))
			metrics.RecordStreamMessage("dead_letter")
			return c.deadLetter(ctx, stream, msg, err, attempt)

		case DecisionRetry:
			wait := retry.Duration()
			log.Warn("falha ao processar trade, nova tentativa",
				zap.Int64("trade_id", event.ID),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err))
			metrics.RecordStreamMessage("retry")
			if !sleep(ctx, wait) {
				return false
			}
		}
	}
}

func (c *Consumer) ack(ctx context.Context, stream, id string) bool {
	if err := c.client.XAck(ctx, stream, c.opts.Group, id).Err(); err != nil {
		c.log.Error("erro ao confirmar mensagem",
			zap.String("stream", stream),
			zap.String("entry_id", id),
			zap.Error(err))
	}
	return ctx.Err() == nil
}

func (c *Consumer) deadLetter(ctx context.Context, stream string, msg redis.XMessage, cause error, attempts int) bool {
	payload, _ := msg.Values[payloadField].(string)
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.opts.DeadLetter,
		Values: map[string]interface{}{
			payloadField: payload,
			"error":      cause.Error(),
			"stream":     stream,
			"entry_id":   msg.ID,
			"attempts":   attempts,
		},
	}).Err()
	if err != nil {
		// Sem ack: a mensagem fica pendente e volta no próximo início.
		c.log.Error("erro ao gravar dead-letter",
			zap.String("stream", stream),
			zap.String("entry_id", msg.ID),
			zap.Error(err))
		return ctx.Err() == nil
	}
	return c.ack(ctx, stream, msg.ID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

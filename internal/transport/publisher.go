package transport

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jeovahfialho/lotwise/internal/domain"
	"github.com/jeovahfialho/lotwise/pkg/logger"
	"github.com/jeovahfialho/lotwise/pkg/metrics"
	"go.uber.org/zap"
)

type Publisher struct {
	client     *redis.Client
	stream     string
	partitions int
	maxLen     int64
	log        *zap.Logger
}

func NewPublisher(client *redis.Client, stream string, partitions int, maxLen int64) *Publisher {
	return &Publisher{
		client:     client,
		stream:     stream,
		partitions: partitions,
		maxLen:     maxLen,
		log:        logger.Named("publisher"),
	}
}

// Publish grava o evento na partição do seu símbolo e devolve o id da entrada.
func (p *Publisher) Publish(ctx context.Context, event domain.TradeEvent) (string, error) {
	payload, err := encodeEvent(event)
	if err != nil {
		metrics.RecordPublish(err)
		return "", err
	}

	stream := StreamKey(p.stream, Partition(event.Symbol, p.partitions))
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	metrics.RecordPublish(err)
	if err != nil {
		return "", fmt.Errorf("erro ao publicar trade %d em %s: %w", event.ID, stream, err)
	}

	p.log.Debug("trade publicado",
		zap.Int64("trade_id", event.ID),
		zap.String("symbol", event.Symbol),
		zap.String("stream", stream),
		zap.String("entry_id", id))
	return id, nil
}

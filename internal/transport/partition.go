// Package transport leva eventos de trade da ingestão até o motor de lotes
// por Redis Streams particionados por símbolo.
package transport

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/jeovahfialho/lotwise/internal/domain"
)

const payloadField = "payload"

// Partition mapeia o símbolo para uma partição estável em [0, n).
func Partition(symbol string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}

// StreamKey devolve o nome do stream de uma partição.
func StreamKey(base string, partition int) string {
	return fmt.Sprintf("%s:%d", base, partition)
}

func encodeEvent(event domain.TradeEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("erro ao serializar evento: %w", err)
	}
	return string(data), nil
}

// decodeEvent lê o payload de uma mensagem do stream e valida o evento.
func decodeEvent(values map[string]interface{}) (domain.TradeEvent, error) {
	var event domain.TradeEvent

	raw, ok := values[payloadField]
	if !ok {
		return event, fmt.Errorf("%w: mensagem sem campo %s", domain.ErrInvalidTrade, payloadField)
	}
	payload, ok := raw.(string)
	if !ok {
		return event, fmt.Errorf("%w: payload com tipo inesperado %T", domain.ErrInvalidTrade, raw)
	}

	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, fmt.Errorf("%w: payload malformado: %v", domain.ErrInvalidTrade, err)
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventTicketOpened    = "ticket.opened"
	EventTicketClosed    = "ticket.closed"
	EventTicketAbandoned = "ticket.abandoned"
)

// TicketEventProducer — интерфейс для отправки событий тикета в Kafka (для подмены моком в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события тикетов в топик Kafka (best-effort, не блокирует обработку событий).
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой — методы no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events actually leave the process.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// ProduceTicketEvent отправляет событие тикета в топик. Ключ сообщения — комната автора,
// чтобы события одного запроса попадали в одну партицию.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{"event": event}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("kafka: marshal ticket event")
		return
	}
	var key []byte
	if room, ok := payload["original_room"].(string); ok {
		key = []byte(room)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: body}); err != nil {
		log.Error().Err(err).Str("event", event).Msg("kafka: write ticket event")
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// TicketPayload — тело события тикета.
func TicketPayload(t *model.Ticket, status model.TicketStatus) map[string]interface{} {
	if t == nil {
		return nil
	}
	return map[string]interface{}{
		"ticket_id":        int64(t.ID),
		"original_room":    t.OriginalRoom,
		"original_message": t.OriginalMessage,
		"mirrored_room":    t.MirroredRoom,
		"mirrored_message": t.MirroredMessage,
		"creator":          t.Creator,
		"status":           string(status),
	}
}

package kafka

import (
	"context"
	"testing"

	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerWithoutBrokersIsNoop(t *testing.T) {
	p := NewProducer(nil, "tickets")
	assert.False(t, p.Enabled())
	p.ProduceTicketEvent(context.Background(), EventTicketOpened, map[string]interface{}{"ticket_id": 1})
	require.NoError(t, p.Close())

	p = NewProducer([]string{"localhost:9092"}, "")
	assert.False(t, p.Enabled())
}

func TestProducerWithBrokersIsEnabled(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "tickets")
	assert.True(t, p.Enabled())
	require.NoError(t, p.Close())
}

func TestTicketPayload(t *testing.T) {
	assert.Nil(t, TicketPayload(nil, model.TicketStatusOpen))

	payload := TicketPayload(&model.Ticket{
		ID:              7,
		OriginalRoom:    "!dm:example.org",
		OriginalMessage: "$orig",
		MirroredRoom:    "!it:example.org",
		MirroredMessage: "$mirror",
		Creator:         "@alice:example.org",
	}, model.TicketStatusClosed)

	assert.Equal(t, int64(7), payload["ticket_id"])
	assert.Equal(t, "closed", payload["status"])
	assert.Equal(t, "!dm:example.org", payload["original_room"])
	assert.Equal(t, "@alice:example.org", payload["creator"])
}

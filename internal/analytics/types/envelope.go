package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/leafshop/leafshop-backend/pkg/enums"
)

// ErrUnsupportedEventType marks envelopes the sink has no row mapping for.
// Workers ack these instead of redelivering them.
var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Envelope is an order event as received from the orders subscription.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// HasPayload reports whether the envelope carries a non-null payload.
func (e Envelope) HasPayload() bool {
	trimmed := bytes.TrimSpace(e.Payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

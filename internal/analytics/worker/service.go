package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/internal/analytics/types"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/outbox"
)

// ConsumerName scopes the processed-event markers of this sink in Redis.
const ConsumerName = "analytics"

// Handler processes one decoded order event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// receiver is the part of *pubsub.Subscriber the worker drives.
type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type disposition int

const (
	ack disposition = iota
	nack
)

// Service feeds order events from the orders subscription into the
// analytics handler. Event ids are marked in Redis before handling and the
// marker is cleared again when the handler fails, so a redelivery is
// handled exactly once.
type Service struct {
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
	settle       func(*gcppubsub.Message, disposition)
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	return newService(subscription, handler, manager, logg)
}

func newService(subscription receiver, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	switch {
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
		settle:       settleMessage,
	}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		s.settle(msg, s.process(msgCtx, msg))
	})
}

func settleMessage(msg *gcppubsub.Message, d disposition) {
	if d == nack {
		msg.Nack()
		return
	}
	msg.Ack()
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) disposition {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		// Malformed messages never get better on redelivery.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed order event")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
		"occurred_at":  envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping order event with non-uuid event id")
		return ack
	}

	seen, err := s.manager.CheckAndMarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency check failed", err)
		return nack
	}
	if seen {
		s.logg.Info(ctx, "order event already processed")
		return ack
	}

	err = s.handler.Handle(ctx, envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "order event handled")
		return ack
	case errors.Is(err, types.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "skipping unsupported event type")
		return ack
	}

	s.logg.Error(ctx, "order event handler failed", err)
	if delErr := s.manager.Delete(ctx, ConsumerName, eventID); delErr != nil {
		s.logg.Error(ctx, "failed to clear processed marker", delErr)
	}
	return nack
}

// decodeEnvelope merges the stored outbox envelope with the routing
// attributes the publisher sets on every message.
func decodeEnvelope(msg *gcppubsub.Message) (types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return types.Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return types.Envelope{}, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("occurred_at")); err == nil {
			occurredAt = parsed
		} else {
			occurredAt = msg.PublishTime
		}
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}

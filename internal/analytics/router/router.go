package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leafshop/leafshop-backend/internal/analytics/types"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/outbox/payloads"
)

// ErrUnsupportedEventType is returned for event types with no handler.
var ErrUnsupportedEventType = types.ErrUnsupportedEventType

// Writer delivers BigQuery rows produced by the handlers.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// ErrEmptyPayload rejects envelopes whose data is missing or null.
var ErrEmptyPayload = errors.New("envelope has no payload")

// route pairs a handler with the decoder for its payload type.
type route struct {
	decode  func(json.RawMessage) (any, error)
	handler Handler
}

func routeFor[T any](h Handler) route {
	return route{
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
		handler: h,
	}
}

// Router dispatches envelopes by event type. Only the events the order
// analytics table knows about are routed.
type Router struct {
	routes map[enums.OutboxEventType]route
	logg   *logger.Logger
}

// NewRouter installs the default handlers. A non-nil override replaces the
// handler of an already routed event; overrides for unknown events are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderCreated:        newOrderCreatedHandler(writer, logg),
		enums.EventReservationReleased: newReservationReleasedHandler(writer, logg),
	}
	for event, custom := range overrides {
		if _, known := handlers[event]; known && custom != nil {
			handlers[event] = custom
		}
	}

	return &Router{
		routes: map[enums.OutboxEventType]route{
			enums.EventOrderCreated:        routeFor[payloads.OrderCreatedEvent](handlers[enums.EventOrderCreated]),
			enums.EventReservationReleased: routeFor[payloads.ReservationReleasedEvent](handlers[enums.EventReservationReleased]),
		},
		logg: logg,
	}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if !envelope.HasPayload() {
		return fmt.Errorf("%w: %s", ErrEmptyPayload, envelope.EventType)
	}
	payload, err := rt.decode(envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return rt.handler.Handle(ctx, envelope, payload)
}

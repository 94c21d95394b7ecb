package router

import (
	"context"
	"fmt"

	"github.com/leafshop/leafshop-backend/internal/analytics/types"
	analyticswriter "github.com/leafshop/leafshop-backend/internal/analytics/writer"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/outbox/payloads"
)

type reservationReleasedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newReservationReleasedHandler(writer Writer, logg *logger.Logger) Handler {
	return &reservationReleasedHandler{writer: writer, logg: logg}
}

func (h *reservationReleasedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ReservationReleasedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for reservation_released")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
		"reason":     event.Reason,
	})

	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode release payload", err)
		return fmt.Errorf("encode payload json: %w", err)
	}

	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.ReleasedAt.UTC()
	}

	row := types.OrderEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurredAt,
		OrderID:       event.OrderID.String(),
		OrderRef:      stringPtr(event.OrderRef),
		CartID:        uuidPtr(event.CartID),
		UserID:        uuidPtr(event.UserID),
		ReleaseReason: stringPtr(event.Reason),
		ReleasedUnits: int64Ptr(int64(event.ReleasedUnits)),
		Payload:       payloadJSON,
	}

	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "reservation_released row inserted")
	return nil
}

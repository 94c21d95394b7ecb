package router

import (
	"context"
	"fmt"

	"github.com/leafshop/leafshop-backend/internal/analytics/types"
	analyticswriter "github.com/leafshop/leafshop-backend/internal/analytics/writer"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/outbox/payloads"
)

type orderCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderCreatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderCreatedHandler{writer: writer, logg: logg}
}

func (h *orderCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_created")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
		"order_ref":  event.OrderRef,
	})

	row, err := buildOrderCreatedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}

	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order_created row inserted")
	return nil
}

func buildOrderCreatedRow(envelope types.Envelope, event *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.OrderEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt,
		OrderID:       event.OrderID.String(),
		OrderRef:      stringPtr(event.OrderRef),
		CartID:        uuidPtr(event.CartID),
		UserID:        uuidPtr(event.UserID),
		CouponCode:    optionalString(event.CouponCode),
		SubtotalCents: centsPtr(event.Subtotal),
		ShippingCents: centsPtr(event.ShippingAmount),
		DiscountCents: centsPtr(event.DiscountAmount),
		TotalCents:    centsPtr(event.TotalAmount),
		LineCount:     int64Ptr(int64(event.LineCount)),
		UnitCount:     int64Ptr(int64(event.UnitCount)),
		Payload:       payloadJSON,
	}, nil
}

package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Money columns are
// stored in cents.
type OrderEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       string             `bigquery:"order_id"`
	OrderRef      *string            `bigquery:"order_ref"`
	CartID        *string            `bigquery:"cart_id"`
	UserID        *string            `bigquery:"user_id"`
	CouponCode    *string            `bigquery:"coupon_code"`
	SubtotalCents *int64             `bigquery:"subtotal_cents"`
	ShippingCents *int64             `bigquery:"shipping_cents"`
	DiscountCents *int64             `bigquery:"discount_cents"`
	TotalCents    *int64             `bigquery:"total_cents"`
	LineCount     *int64             `bigquery:"line_count"`
	UnitCount     *int64             `bigquery:"unit_count"`
	ReleaseReason *string            `bigquery:"release_reason"`
	ReleasedUnits *int64             `bigquery:"released_units"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// OrderEventSchema is the table layout used when the sink creates the
// order_events table itself. It must stay in step with OrderEventRow.
func OrderEventSchema() cbigquery.Schema {
	nullable := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t}
	}
	required := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t, Required: true}
	}
	return cbigquery.Schema{
		required("event_id", cbigquery.StringFieldType),
		required("event_type", cbigquery.StringFieldType),
		required("occurred_at", cbigquery.TimestampFieldType),
		required("order_id", cbigquery.StringFieldType),
		nullable("order_ref", cbigquery.StringFieldType),
		nullable("cart_id", cbigquery.StringFieldType),
		nullable("user_id", cbigquery.StringFieldType),
		nullable("coupon_code", cbigquery.StringFieldType),
		nullable("subtotal_cents", cbigquery.IntegerFieldType),
		nullable("shipping_cents", cbigquery.IntegerFieldType),
		nullable("discount_cents", cbigquery.IntegerFieldType),
		nullable("total_cents", cbigquery.IntegerFieldType),
		nullable("line_count", cbigquery.IntegerFieldType),
		nullable("unit_count", cbigquery.IntegerFieldType),
		nullable("release_reason", cbigquery.StringFieldType),
		nullable("released_units", cbigquery.IntegerFieldType),
		nullable("payload", cbigquery.JSONFieldType),
	}
}

// OrderEventPartitionField is the day-partitioning column of order_events.
const OrderEventPartitionField = "occurred_at"

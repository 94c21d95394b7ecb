package enums

import "slices"

// InventoryAdjustmentReason explains a manual change to on-hand stock.
type InventoryAdjustmentReason string

const (
	AdjustmentRestock     InventoryAdjustmentReason = "RESTOCK"
	AdjustmentDamage      InventoryAdjustmentReason = "DAMAGE"
	AdjustmentCorrection  InventoryAdjustmentReason = "CORRECTION"
	AdjustmentFulfillment InventoryAdjustmentReason = "FULFILLMENT"
)

var validInventoryAdjustmentReasons = []InventoryAdjustmentReason{
	AdjustmentRestock,
	AdjustmentDamage,
	AdjustmentCorrection,
	AdjustmentFulfillment,
}

// String implements fmt.Stringer.
func (r InventoryAdjustmentReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known InventoryAdjustmentReason.
func (r InventoryAdjustmentReason) IsValid() bool {
	return slices.Contains(validInventoryAdjustmentReasons, r)
}

// ParseInventoryAdjustmentReason converts raw input into an InventoryAdjustmentReason.
func ParseInventoryAdjustmentReason(value string) (InventoryAdjustmentReason, error) {
	return parse("adjustment reason", value, validInventoryAdjustmentReasons)
}

// ConsumesReservation reports whether the adjustment ships stock that was
// previously reserved, so reserved quantity shrinks together with on-hand.
func (r InventoryAdjustmentReason) ConsumesReservation() bool {
	return r == AdjustmentFulfillment
}

package enums

import "slices"

// InventoryStatus records how far an order's stock reservation has progressed.
type InventoryStatus string

const (
	InventoryStatusPending  InventoryStatus = "PENDING"
	InventoryStatusReserved InventoryStatus = "RESERVED"
	InventoryStatusReleased InventoryStatus = "RELEASED"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryStatusPending,
	InventoryStatusReserved,
	InventoryStatusReleased,
}

// String implements fmt.Stringer.
func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	return slices.Contains(validInventoryStatuses, s)
}

// ParseInventoryStatus converts raw input into an InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	return parse("inventory status", value, validInventoryStatuses)
}

package router

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stringPtr returns a trimmed pointer or nil when the input is empty.
func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	return stringPtr(*value)
}

func uuidPtr(value *uuid.UUID) *string {
	if value == nil || *value == uuid.Nil {
		return nil
	}
	s := value.String()
	return &s
}

func int64Ptr(value int64) *int64 {
	return &value
}

// centsPtr converts a currency amount to whole cents, rounding half away
// from zero.
func centsPtr(amount decimal.Decimal) *int64 {
	cents := amount.Shift(2).Round(0).IntPart()
	return &cents
}

// Package enums holds the string-backed enumerations stored in the database
// and exchanged over the API.
package enums

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalid is wrapped by every Parse function.
var ErrInvalid = errors.New("invalid enum value")

func parse[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrInvalid, kind, value)
}

// Package enums holds the string-backed types persisted in the database and
// carried on events.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of set equal to value.
func parse[T ~string](set []T, kind, value string) (T, error) {
	if i := slices.Index(set, T(value)); i >= 0 {
		return set[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}

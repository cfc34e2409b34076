package router

import (
	"strings"

	"github.com/google/uuid"
)

// nullable maps blank strings to a NULL column.
func nullable[S ~string](v S) *string {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return nil
	}
	return &s
}

func nullableID(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}

func ptr[T any](v T) *T { return &v }

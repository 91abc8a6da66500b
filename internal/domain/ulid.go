package domain

import "github.com/oklog/ulid/v2"

// NewID generates a ULID string for record identifiers (client IDs,
// consent rows). ULIDs are time-ordered and not secret; opaque codes and
// tokens come from crypto/rand instead.
func NewID() string {
	return ulid.Make().String()
}

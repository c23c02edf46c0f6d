package store

import "github.com/google/uuid"

// NewID returns a random v4 UUID used as a record identifier.
func NewID() string {
	return uuid.NewString()
}

package types

import (
	"github.com/google/uuid"
)

// ID identifies records created by this service. Backend-assigned
// identifiers stay plain strings; ID is only for locally generated ones.
type ID string

// NewID generates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}

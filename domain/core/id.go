package core

import (
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UUID parses the identifier as a UUID
func (id ID) UUID() (uuid.UUID, error) {
	return uuid.Parse(string(id))
}

// ForecastID identifies a generated forecast grid
type ForecastID ID

// NewForecastID creates a new forecast identifier
func NewForecastID() ForecastID {
	return ForecastID(NewID())
}

// ParseForecastID validates a caller-supplied forecast identifier
func ParseForecastID(s string) (ForecastID, error) {
	if strings.TrimSpace(s) == "" {
		return "", NewNotFoundError("forecast grid", "<empty>")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", NewNotFoundError("forecast grid", s)
	}
	return ForecastID(s), nil
}

func (id ForecastID) String() string { return string(id) }
func (id ForecastID) IsEmpty() bool  { return ID(id).IsEmpty() }

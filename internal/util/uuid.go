package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidUUID is returned when a value is not a UUID v4.
var ErrInvalidUUID = errors.New("invalid uuid v4")

// ParseUUIDv4 parses and validates a UUID string, ensuring it is version 4.
func ParseUUIDv4(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.UUID{}, fmt.Errorf("%w: value is empty", ErrInvalidUUID)
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}

	if u.Version() != 4 {
		return uuid.UUID{}, fmt.Errorf("%w: expected version 4", ErrInvalidUUID)
	}

	return u, nil
}

package types

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationID identifies one top-level evaluation call in logs and responses.
type EvaluationID string

// NewEvaluationID generates a UUIDv7 evaluation identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEvaluationID() EvaluationID {
	return EvaluationID(uuid.Must(uuid.NewV7()).String())
}

// ParseEvaluationID validates and converts a string to EvaluationID.
func ParseEvaluationID(s string) (EvaluationID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return EvaluationID(s), nil
}

// EvaluationTime extracts the timestamp embedded in a UUIDv7 evaluation ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EvaluationTime(id EvaluationID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

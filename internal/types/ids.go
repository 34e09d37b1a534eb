package types

import (
	"time"

	"github.com/google/uuid"
)

// StageID identifies a stage within a rule. Opaque; never serialized.
type StageID string

// ConditionID identifies a condition within a stage. Opaque; never serialized.
type ConditionID string

// FilterID identifies a filter within its owning collection. Opaque; never serialized.
type FilterID string

// RuleID identifies a submitted canonical rule document.
type RuleID string

// newID returns a UUIDv7 string.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewStageID generates a stage identifier.
func NewStageID() StageID {
	return StageID(newID())
}

// NewConditionID generates a condition identifier.
func NewConditionID() ConditionID {
	return ConditionID(newID())
}

// NewFilterID generates a filter identifier.
func NewFilterID() FilterID {
	return FilterID(newID())
}

// NewRuleID generates a UUIDv7 rule identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
func NewRuleID() RuleID {
	return RuleID(newID())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// RuleIDTime extracts the timestamp embedded in a UUIDv7 rule ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func RuleIDTime(id RuleID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

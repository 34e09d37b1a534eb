// Package types provides domain models shared across stagekeeper components.
//
// The rule model (Rule, Stage, Condition, Filter) lives here together with
// its enumerations and value types; operations over it live in
// internal/rules. Types here are plain values: every operation in
// internal/rules returns a new value instead of mutating its input, so a
// Rule can be shared between goroutines once constructed.
//
// Separation from the wire: the canonical document handed to evaluators is
// produced by internal/rules (CanonicalRule). gRPC messages are built from
// that document at the API boundary.
package types

// Maybe marks a patch field as present or absent.
// Present with a zero/nil Value means "set to null", which differs from absent.
type Maybe[T any] struct {
	Value T
	Set   bool
}

// Some returns a present patch field.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{Value: v, Set: true}
}

// IntPtr returns a pointer to n. Convenience for nullable integer fields.
func IntPtr(n int) *int {
	return &n
}

// StringPtr returns a pointer to s. Convenience for nullable string fields.
func StringPtr(s string) *string {
	return &s
}

// Structural limits enforced by rules.Validate.
const (
	// MaxStages bounds the number of stages in one rule.
	// Evaluators join stage outputs pairwise; 32 keeps the join graph small.
	MaxStages = 32

	// MaxConditionsPerStage bounds conditions evaluated per stage.
	MaxConditionsPerStage = 32

	// MaxFiltersPerCollection bounds row filters per stage and filters per condition.
	MaxFiltersPerCollection = 64

	// MaxCorrelationKeys bounds correlation keys per stage.
	MaxCorrelationKeys = 16

	// MaxGroupByFields bounds the number of grouping fields per stage.
	MaxGroupByFields = 8

	// MaxTimeWindowDays caps every day-based window (ten years).
	MaxTimeWindowDays = 3650

	// MaxOutputNameLength caps stage output labels.
	MaxOutputNameLength = 128
)

package types

import "errors"

// Sentinel errors for stagekeeper operations.
var (
	// ErrLastCondition indicates a refused removal of a stage's only condition.
	ErrLastCondition = errors.New("at least one condition is required")

	// ErrLastStage indicates a refused removal of a rule's only stage.
	ErrLastStage = errors.New("at least one stage is required")

	// ErrStageNotFound indicates no stage with the given id exists in the rule.
	ErrStageNotFound = errors.New("stage not found")

	// ErrConditionNotFound indicates no condition with the given id exists in the stage.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrFilterNotFound indicates no filter with the given id exists in the collection.
	ErrFilterNotFound = errors.New("filter not found")

	// ErrInvalidEnum indicates a value outside an enumerated set.
	ErrInvalidEnum = errors.New("value not in enumerated set")

	// ErrInvalidValue indicates a filter value or threshold with an unsupported JSON shape.
	ErrInvalidValue = errors.New("unsupported value shape")

	// ErrInvalidRule indicates a rule failed structural validation.
	ErrInvalidRule = errors.New("rule failed validation")

	// ErrDanglingReference indicates a stage reference to a stage that does not exist.
	ErrDanglingReference = errors.New("reference to missing stage")

	// ErrForwardReference indicates a stage reference to the same or a later stage.
	ErrForwardReference = errors.New("reference to same or later stage")

	// ErrMissingReference indicates a reference threshold without a reference stage.
	ErrMissingReference = errors.New("reference threshold requires a reference stage")

	// ErrUnknownField indicates a field name outside the configured catalog.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownList indicates a list id the list registry cannot resolve.
	ErrUnknownList = errors.New("unknown list")

	// ErrIncompatibleOperator indicates an operator that cannot apply to the field kind.
	ErrIncompatibleOperator = errors.New("operator incompatible with field")

	// ErrMissingValue indicates a required value, list or threshold is empty.
	ErrMissingValue = errors.New("required value missing")

	// ErrLimitExceeded indicates a structural limit was exceeded.
	ErrLimitExceeded = errors.New("structural limit exceeded")

	// ErrInconsistentRule indicates cross-field state that the update rules forbid.
	ErrInconsistentRule = errors.New("inconsistent rule state")
)

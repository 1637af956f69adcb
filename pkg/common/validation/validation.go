package validation

import (
	"time"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return tlerrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return tlerrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidatePresent validates that a required value was supplied. Callers pass
// the result of their own nil check so typed nils (nil funcs, nil pointers)
// are caught as well.
func ValidatePresent(module, field string, present bool) error {
	if !present {
		return tlerrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNonNegativeDuration validates that a duration is zero or greater.
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return tlerrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable or a positive duration")
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is strictly positive.
func ValidatePositiveDuration(module, field string, value time.Duration) error {
	if value <= 0 {
		return tlerrors.NewValidationError(module, field, value, "must be positive").
			WithHint("use a duration greater than 0")
	}
	return nil
}

// ValidateExclusive rejects configurations where two mutually exclusive
// fields are both set.
func ValidateExclusive(module, field, other string, fieldSet, otherSet bool) error {
	if fieldSet && otherSet {
		return tlerrors.NewValidationError(module, field, "set", "cannot be combined with "+other).
			WithHint("choose either " + field + " or " + other)
	}
	return nil
}

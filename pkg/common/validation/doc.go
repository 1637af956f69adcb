// Package validation provides common validation utilities for configuration
// and task parameters across the timeloop library.
//
// Every helper returns a *errors.ValidationError so callers can match
// failures with errors.IsValidationError or errors.Is(err, ErrInvalidConfiguration).
package validation

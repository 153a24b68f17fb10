package pipeline

import (
	"errors"

	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/validate"
)

// Sentinel errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrNoRules    = errors.New("no rule set loaded")
)

// ValidationError carries the failed validation result.
type ValidationError struct {
	Result model.ValidationResult
}

func (e *ValidationError) Error() string { return validate.Message(e.Result) }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

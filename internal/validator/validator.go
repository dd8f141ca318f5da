package validator

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the shared validator instance
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRequest validates a request struct against its validate tags and
// collects every field violation into a single validation error, so a
// malformed request reports all problems at once rather than the first.
func ValidateRequest(req any) error {
	err := GetValidator().Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ierr.WithError(err).
			WithHint("Request validation failed").
			Mark(ierr.ErrValidation)
	}

	details := make(map[string]any, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		fields = append(fields, field)
		details[field] = describeViolation(fe)
	}

	return ierr.NewErrorf("invalid request: %s", strings.Join(fields, ", ")).
		WithHint("One or more request fields are invalid").
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is below the minimum of " + fe.Param()
	case "max":
		return "value is above the maximum of " + fe.Param()
	case "len":
		return "value must have length " + fe.Param()
	case "oneof":
		return "value must be one of: " + fe.Param()
	case "gt":
		return "value must be greater than " + fe.Param()
	case "url":
		return "value must be a valid URL"
	case "email":
		return "value must be a valid email address"
	default:
		return "failed validation: " + fe.Tag()
	}
}

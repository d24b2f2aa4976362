package apierrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Invalid wraps a decoding or validation failure as a RemoteError that
// matches ErrInvalidPayload.
func Invalid(err error) error {
	if err == nil {
		return &RemoteError{Message: "invalid payload", cause: ErrInvalidPayload}
	}
	message := fmt.Sprintf("invalid payload: %v", err)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		message = buildValidationMessage(validationErrs)
	}
	return &RemoteError{Message: message, cause: fmt.Errorf("%w: %w", ErrInvalidPayload, err)}
}

// buildValidationMessage creates a readable message from validation errors
func buildValidationMessage(validationErrs validator.ValidationErrors) string {
	if len(validationErrs) == 0 {
		return "Invalid payload"
	}

	if len(validationErrs) == 1 {
		return getValidationMessage(validationErrs[0])
	}

	var messages []string
	for _, fieldErr := range validationErrs {
		messages = append(messages, getValidationMessage(fieldErr))
	}
	return "Validation failed: " + strings.Join(messages, "; ")
}

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(fieldErr validator.FieldError) string {
	field := fieldErr.Field()
	tag := fieldErr.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, tag)
	}
}

package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors flattens gin binding errors into field -> message.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			errorResponse[fieldErr.Field()] = "is required"
		case "gt":
			errorResponse[fieldErr.Field()] = "must be greater than " + fieldErr.Param()
		case "oneof":
			errorResponse[fieldErr.Field()] = "must be one of " + fieldErr.Param()
		default:
			errorResponse[fieldErr.Field()] = "is invalid"
		}
	}
	return errorResponse
}

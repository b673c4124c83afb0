// Package response defines the JSON envelope returned by the HTTP API.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope wrapping every API payload.
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// ValidationError describes one field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Message: "Invalid request body.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Message: "The requested resource was not found.",
}

var ShortCodeExistsResponse = Response{
	Status:  StatusError,
	Message: "The requested short code already exists.",
}

var URLExpiredResponse = Response{
	Status:  StatusError,
	Message: "The requested short URL has expired.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Message: "An internal server error occurred. Please try again later.",
}

// SuccessResponse builds a success envelope with an optional data payload.
func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ValidationErrorResponse converts a validator error into field-level details.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Message: "Validation failed.",
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			resp.Errors = append(resp.Errors, ValidationError{
				Field:   fieldErr.Field(),
				Message: validationErrorMessage(fieldErr),
			})
		}
	}

	return resp
}

func validationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "field is required"
	case "url":
		return "field must be a valid url"
	case "min":
		return fmt.Sprintf("field must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("field must be at most %s characters long", err.Param())
	case "gt":
		return fmt.Sprintf("field must be greater than %s", err.Param())
	default:
		return "field is invalid"
	}
}

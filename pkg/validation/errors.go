package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single itemized validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Result accumulates validation errors and non-fatal warnings. Validation
// does not short-circuit on the first failure; callers collect everything and
// report it at once.
type Result struct {
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

// Valid reports whether no blocking errors were recorded. Warnings do not
// affect validity.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// AddError records a blocking validation error.
func (r *Result) AddError(field, message, code string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message, Code: code})
}

// AddWarning records a non-fatal validation warning.
func (r *Result) AddWarning(field, message, code string) {
	r.Warnings = append(r.Warnings, FieldError{Field: field, Message: message, Code: code})
}

// Merge appends another result's errors and warnings.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Error implements the error interface.
func (r *Result) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(msgs, "; ")
}

var validate = validator.New()

// ValidateStruct runs tag-based validation on a request struct and converts
// failures into the itemized error shape.
func ValidateStruct(s interface{}) *Result {
	result := &Result{}

	err := validate.Struct(s)
	if err == nil {
		return result
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		result.AddError("", err.Error(), "INVALID_REQUEST")
		return result
	}

	for _, fe := range errs {
		result.AddError(fe.Field(), fieldMessage(fe), strings.ToUpper("invalid_"+fe.Field()))
	}

	return result
}

// fieldMessage returns a human-readable message for a validator failure
func fieldMessage(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "latitude":
		return fmt.Sprintf("%s must be a valid latitude (-90 to 90)", field)
	case "longitude":
		return fmt.Sprintf("%s must be a valid longitude (-180 to 180)", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

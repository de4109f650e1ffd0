package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the validator instance
type Validator struct {
	validate *validator.Validate
}

// Global validator instance
var validate *Validator

// InitValidator initializes the global validator
func InitValidator() {
	v := validator.New()

	// Recognized CRM deal events; everything else is acknowledged as ignored
	// before validation kicks in, so this only guards direct API misuse.
	_ = v.RegisterValidation("crmevent", validateCRMEvent)

	validate = &Validator{validate: v}
}

// GetValidator returns the global validator instance
func GetValidator() *Validator {
	if validate == nil {
		InitValidator()
	}
	return validate
}

// ValidateStruct validates a struct using tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationError formats validation errors into a user-friendly map
// This prevents leaking internal struct names and provides cleaner error messages
func FormatValidationError(err error) map[string]string {
	if err == nil {
		return nil
	}

	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["error"] = "Invalid request format"
		return errs
	}

	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			errs[field] = "This field is required"
		case "crmevent":
			errs[field] = "Unsupported CRM event"
		case "min":
			errs[field] = fmt.Sprintf("Must be at least %s", e.Param())
		case "max":
			errs[field] = fmt.Sprintf("Must be at most %s", e.Param())
		default:
			errs[field] = "Invalid value"
		}
	}

	return errs
}

// ValidCRMEvents defines the deal notifications that trigger production
var ValidCRMEvents = map[string]bool{
	"ONCRMDEALADD":    true,
	"ONCRMDEALUPDATE": true,
}

// Custom validation function for CRM event names
func validateCRMEvent(fl validator.FieldLevel) bool {
	event := fl.Field().String()
	if event == "" {
		return true
	}
	return ValidCRMEvents[strings.ToUpper(event)]
}

package contactclient

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"

	fieldErrorRequired     = "Required field"
	fieldErrorInvalidEmail = "Invalid email format"
	fieldErrorTooShort     = "%s is too short"
	fieldErrorTooLong      = "%s is too long"
	fieldErrorInvalid      = "Invalid value"
)

var fieldLabels = map[string]string{
	FieldName:    "Name",
	FieldEmail:   "Email",
	FieldMessage: "Message",
}

// Form is the contact form as typed by the visitor. Lengths are counted in characters.
type Form struct {
	Name    string `json:"name" validate:"required,min=2,max=50"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,min=10,max=1000"`
}

// FieldErrors maps a form field to the text shown next to it.
type FieldErrors map[string]string

// Fields lists the failing fields in a stable order.
func (fieldErrors FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fieldErrors))
	for field := range fieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// ValidationError is returned by Submit when the form fails validation.
type ValidationError struct {
	Fields FieldErrors
}

func (validationError *ValidationError) Error() string {
	parts := make([]string, 0, len(validationError.Fields))
	for _, field := range validationError.Fields.Fields() {
		parts = append(parts, field+": "+validationError.Fields[field])
	}
	return "invalid contact form: " + strings.Join(parts, "; ")
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// Validate reports every failing field. A nil result means the form may be sent.
func (form Form) Validate() FieldErrors {
	validationErr := formValidator.Struct(form)
	if validationErr == nil {
		return nil
	}
	var fieldValidationErrors validator.ValidationErrors
	if !errors.As(validationErr, &fieldValidationErrors) {
		return FieldErrors{FieldName: fieldErrorInvalid}
	}

	fieldErrors := make(FieldErrors, len(fieldValidationErrors))
	for _, fieldValidationError := range fieldValidationErrors {
		fieldErrors[fieldValidationError.Field()] = describeFieldError(fieldValidationError)
	}
	return fieldErrors
}

func describeFieldError(fieldValidationError validator.FieldError) string {
	label := fieldLabels[fieldValidationError.Field()]
	switch fieldValidationError.Tag() {
	case "required":
		return fieldErrorRequired
	case "email":
		return fieldErrorInvalidEmail
	case "min":
		return fmt.Sprintf(fieldErrorTooShort, label)
	case "max":
		return fmt.Sprintf(fieldErrorTooLong, label)
	default:
		return fieldErrorInvalid
	}
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/idelchi/gogen/pkg/validator"
)

// registerExclusive adds a custom validator ensuring two fields are mutually exclusive,
// and makes validation errors name fields by their label tag.
func registerExclusive(validator *validator.Validator) error {
	if err := validator.RegisterValidationAndTranslation(
		"exclusive",
		validateExclusive,
		"{0} is mutually exclusive",
	); err != nil {
		return fmt.Errorf("registering exclusive validation: %w", err)
	}

	validator.Validator().RegisterTagNameFunc(func(fld reflect.StructField) string {
		const splitSize = 2

		name := strings.SplitN(fld.Tag.Get("label"), ",", splitSize)[0]
		if name == "-" || name == "" {
			return fld.Name
		}

		return name
	})

	return nil
}

// validateExclusive checks if two fields are mutually exclusive.
// Returns false if both fields have non-empty values.
func validateExclusive(fl validator.FieldLevel) bool {
	field := fl.Field()
	otherField := fl.Parent().FieldByName(fl.Param())

	if !field.IsValid() || !otherField.IsValid() {
		return true
	}

	if field.Kind() == reflect.String && otherField.Kind() == reflect.String {
		return field.String() == "" || otherField.String() == ""
	}

	return true
}

// describe turns validation failures into one readable error.
func describe(errs playground.ValidationErrors) error {
	messages := make([]string, 0, len(errs))

	for _, e := range errs {
		var msg string

		switch e.Tag() {
		case "required_if", "required_unless":
			msg = fmt.Sprintf("%s is required", e.Field())
		case "exclusive":
			msg = fmt.Sprintf("%s is mutually exclusive with %s", e.Field(), e.Param())
		case "oneof":
			msg = fmt.Sprintf("%s must be one of [%s], got %v", e.Field(), e.Param(), e.Value())
		case "hostname_port":
			msg = fmt.Sprintf("%s must be host:port, got %q", e.Field(), e.Value())
		case "min":
			msg = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "startswith":
			msg = fmt.Sprintf("%s must be an age public key (age1...), got %q", e.Field(), e.Value())
		default:
			msg = fmt.Sprintf("%s failed %q validation", e.Field(), e.Tag())
		}

		messages = append(messages, msg)
	}

	return errors.New(strings.Join(messages, "; "))
}

// Package validation wraps go-playground/validator with the tags used by
// lookup requests and converts failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	domainerrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/isbndb"
)

// Validator validates request structs and single values.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the isbn tag registered.
//
// The isbn tag accepts any string that normalizes to 10 or 13 ISBN
// characters, so "978-0-13-468599-1" passes.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "":
			return fld.Name
		case "-":
			return ""
		}
		return name
	})

	// RegisterValidation only fails on an empty or reserved tag name.
	_ = v.RegisterValidation("isbn", func(fl validator.FieldLevel) bool {
		n := len(isbndb.NormalizeISBN(fl.Field().String()))
		return n == 10 || n == 13
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain validation error whose
// details map each failing field to a message.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Var validates a single value against tag. The raw validator error is returned.
func (v *Validator) Var(field any, tag string) error {
	return v.v.Var(field, tag)
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "isbn":
		return "must be a 10 or 13 character ISBN"
	case "oneof":
		return "must be one of: " + e.Param()
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}

package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate checks the same `binding` tags gin checks in ShouldBindJSON, so
// services called directly enforce the request rules too.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	UseJSONNames(v)
	return v
}

// UseJSONNames makes v report fields under their json names.
func UseJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// structErrors runs the binding rules of in. The result may be extended
// with checks that need the database before calling Err.
func structErrors(in interface{}) *ValidationError {
	v := &ValidationError{}
	var failed validator.ValidationErrors
	if errors.As(validate.Struct(in), &failed) {
		addFieldErrors(v, failed)
	}
	return v
}

func addFieldErrors(v *ValidationError, failed validator.ValidationErrors) {
	for _, fe := range failed {
		v.Add(fe.Field(), fieldMessage(fe))
	}
}

// FromValidator turns validator failures into a *ValidationError. Other
// errors are returned unchanged.
func FromValidator(err error) error {
	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return err
	}
	v := &ValidationError{}
	addFieldErrors(v, failed)
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("ensure this value is greater than %s", fe.Param())
	case "eqfield":
		return "password fields didn't match"
	case "nefield":
		return fmt.Sprintf("must differ from %s", strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}

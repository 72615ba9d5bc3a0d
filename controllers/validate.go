package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"go-storefront/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks the validate tags of a decoded request. Missing
// fields are reported together; other failures name the first bad field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Wrap(apperror.BadRequest, "Invalid request", err)
	}

	var missing []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return apperror.New(apperror.BadRequest, "Missing required fields: "+strings.Join(missing, ", ")).
			WithDetails(map[string][]string{"missing": missing})
	}

	fe := fieldErrs[0]
	return apperror.New(apperror.BadRequest, describe(fe)).
		WithDetails(map[string]string{"field": fe.Field(), "rule": fe.Tag()})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

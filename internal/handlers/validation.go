package handlers

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/apperror"
)

// newValidator reports json (or query) names in field errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		}
		return name
	})
	return v
}

// bindBody parses the JSON body into out and validates it.
func bindBody(c *fiber.Ctx, v *validator.Validate, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("Invalid request body")
	}
	return check(v, out)
}

// bindQuery parses query parameters into out and validates it.
func bindQuery(c *fiber.Ctx, v *validator.Validate, out any) error {
	if err := c.QueryParser(out); err != nil {
		return apperror.Validation("Invalid query parameters")
	}
	return check(v, out)
}

func check(v *validator.Validate, out any) error {
	err := v.Struct(out)
	if err == nil {
		return nil
	}
	validationErrors, isValidation := err.(validator.ValidationErrors)
	if !isValidation {
		return apperror.Validation("Validation failed")
	}
	details := make([]apperror.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, apperror.FieldError{Field: fieldPath(e), Message: validationMessage(e)})
	}
	return apperror.Validation("Validation failed", details...)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "url":
		return "Invalid URL format"
	default:
		return "Invalid value"
	}
}

// parsePrice reads an optional non-negative decimal query value.
func parsePrice(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, apperror.Validation("Validation failed",
			apperror.FieldError{Field: field, Message: "Must be a non-negative number"})
	}
	return &d, nil
}

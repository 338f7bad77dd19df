package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notplaceholder", func(fl validator.FieldLevel) bool {
		return !IsPlaceholder(fl.Field().String())
	})
	return v
}

// IsPlaceholder reports values copied verbatim from an example env file.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.Contains(strings.ToLower(v), "your")
}

// Validate checks required settings and wraps every failure in ErrConfiguration.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required", "notplaceholder":
		return fmt.Sprintf("%s must be set (placeholder values are rejected)", field)
	case "eth_addr":
		return fmt.Sprintf("%s must be a 0x-prefixed hex address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

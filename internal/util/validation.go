package util

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"mini-erp/internal/money"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validate checks structs against the same `binding` tags gin validates
// request bodies with.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidations(v)
	return v
}

// RegisterValidations teaches v the JSON field names and the decimal rules
// used by the domain types. gin's validator engine is registered at startup.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("money", decimalRule(func(d decimal.Decimal) bool {
		return d.Equal(money.Round2(d))
	}))
	_ = v.RegisterValidation("positive", decimalRule(decimal.Decimal.IsPositive))
	_ = v.RegisterValidation("nonnegative", decimalRule(func(d decimal.Decimal) bool {
		return !d.IsNegative()
	}))
}

func decimalRule(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && ok(d)
	}
}

// ValidateStruct checks s against its binding tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationDetails renders each failed rule as "<field> <problem>". Errors
// that are not validation failures are returned as their message.
func ValidationDetails(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, describe(fe))
	}
	return details
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " is invalid"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
		}
		if fe.Param() == "0" {
			return field + " must not be negative"
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have %s characters", field, fe.Param())
	case "numeric":
		return field + " must contain only digits"
	case "alpha":
		return field + " must contain only letters"
	case "uppercase":
		return field + " must be uppercase"
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, snakeCase(fe.Param()))
	case "money":
		return field + " must have at most two decimal places"
	case "positive":
		return field + " must be greater than zero"
	case "nonnegative":
		return field + " must not be negative"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

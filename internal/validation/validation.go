// Package validation carries field-level input errors from services to the
// HTTP layer.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Error struct {
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

// Missing reports every required field that is blank, or nil when none are.
// required pairs field names with their raw values, in order.
func Missing(required ...Field) error {
	var missing []string
	for _, f := range required {
		if f.blank() {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fields := make([]FieldError, 0, len(missing))
	for _, name := range missing {
		fields = append(fields, FieldError{Field: name, Code: "required", Message: name + " is required"})
	}
	return &Error{
		Message: "Missing required fields: " + strings.Join(missing, ", "),
		Fields:  fields,
	}
}

func Invalid(field, message string) error {
	return &Error{
		Message: message,
		Fields:  []FieldError{{Field: field, Code: "invalid", Message: message}},
	}
}

func As(err error) (*Error, bool) {
	var v *Error
	if errors.As(err, &v) && v != nil {
		return v, true
	}
	return nil, false
}

// Field is a named value checked by Missing.
type Field struct {
	Name  string
	Value any
}

func Require(name string, value any) Field {
	return Field{Name: name, Value: value}
}

func (f Field) blank() bool {
	switch v := f.Value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case bool:
		return !v
	case int:
		return v == 0
	case decimal.Decimal:
		return v.IsZero()
	case decimal.NullDecimal:
		return !v.Valid || v.Decimal.IsZero()
	case *decimal.Decimal:
		return v == nil || v.IsZero()
	case interface{ Int64() int64 }:
		return isNilPointer(v) || v.Int64() == 0
	default:
		return isNilPointer(v)
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

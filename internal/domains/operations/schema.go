package operations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"bfhl/go-backend/internal/domains/apierr"
	"bfhl/go-backend/internal/domains/mathops"

	"github.com/go-playground/validator/v10"
)

// maxSafeInteger bounds every numeric input to what a JSON client can
// represent exactly (2^53-1).
const maxSafeInteger = 1<<53 - 1

type valueType int

const (
	typeInteger valueType = iota
	typeIntegerArray
	typeString
)

// schema declares the shape of one operation's value. valueTag applies to
// the scalar (or to every array item); lengthTag applies to the array itself.
type schema struct {
	valueType valueType
	valueTag  string
	lengthTag string
}

var schemas = map[Kind]schema{
	KindFibonacci: {valueType: typeInteger, valueTag: "min=0,max=" + strconv.Itoa(mathops.MaxFibonacciIndex)},
	KindPrime:     {valueType: typeIntegerArray, valueTag: "min=2", lengthTag: "min=1,max=20"},
	KindLCM:       {valueType: typeIntegerArray, valueTag: "min=1", lengthTag: "min=2,max=10"},
	KindHCF:       {valueType: typeIntegerArray, valueTag: "min=1", lengthTag: "min=2,max=10"},
	KindAI:        {valueType: typeString, valueTag: "min=1,max=500"},
}

var validate = validator.New()

// validateValue decodes raw according to the kind's schema and returns the
// typed operation, or a client input error describing the first violation.
func validateValue(kind Kind, raw json.RawMessage) (Operation, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, apierr.ClientInput(MsgInvalidKey)
	}
	field := string(kind)
	switch s.valueType {
	case typeInteger:
		n, err := decodeInteger(field, raw)
		if err != nil {
			return nil, err
		}
		if err := checkTag(field, n, s.valueTag); err != nil {
			return nil, err
		}
		return Fibonacci{N: int(n)}, nil
	case typeIntegerArray:
		values, err := decodeIntegerArray(field, raw, s)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindPrime:
			return PrimeFilter{Values: values}, nil
		case KindLCM:
			return LCM{Values: values}, nil
		default:
			return HCF{Values: values}, nil
		}
	case typeString:
		text, err := decodeString(field, raw)
		if err != nil {
			return nil, err
		}
		if err := checkTag(field, text, s.valueTag); err != nil {
			return nil, err
		}
		return Ask{Question: text}, nil
	default:
		return nil, apierr.Internal(fmt.Errorf("schema for %q has unknown value type %d", kind, s.valueType))
	}
}

func decodeIntegerArray(field string, raw json.RawMessage, s schema) ([]int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apierr.ClientInput(quote(field) + " must be an array")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, apierr.ClientInput(quote(field) + " must be an array")
	}
	values := make([]int64, 0, len(items))
	for i, item := range items {
		itemField := fmt.Sprintf("%s[%d]", field, i)
		n, err := decodeInteger(itemField, item)
		if err != nil {
			return nil, err
		}
		if err := checkTag(itemField, n, s.valueTag); err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	if err := checkTag(field, values, s.lengthTag); err != nil {
		return nil, err
	}
	return values, nil
}

func decodeInteger(field string, raw json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, apierr.ClientInput(quote(field) + " must be a number")
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, apierr.ClientInput(quote(field) + " must be a number")
	}
	if n, err := num.Int64(); err == nil {
		if n > maxSafeInteger || n < -maxSafeInteger {
			return 0, apierr.ClientInput(quote(field) + " must be a safe number")
		}
		return n, nil
	}
	f, err := num.Float64()
	if err != nil || math.IsInf(f, 0) {
		return 0, apierr.ClientInput(quote(field) + " must be a safe number")
	}
	if f != math.Trunc(f) {
		return 0, apierr.ClientInput(quote(field) + " must be an integer")
	}
	if math.Abs(f) > maxSafeInteger {
		return 0, apierr.ClientInput(quote(field) + " must be a safe number")
	}
	return int64(f), nil
}

func decodeString(field string, raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", apierr.ClientInput(quote(field) + " must be a string")
	}
	s, ok := v.(string)
	if !ok {
		return "", apierr.ClientInput(quote(field) + " must be a string")
	}
	return s, nil
}

// checkTag runs one validator tag set against value and renders the first
// failing rule.
func checkTag(field string, value any, tag string) error {
	if tag == "" {
		return nil
	}
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apierr.ClientInput(describe(field, verrs[0]))
	}
	return apierr.Internal(fmt.Errorf("validate %s: %w", field, err))
}

func describe(field string, fe validator.FieldError) string {
	name := quote(field)
	param := fe.Param()
	switch fe.Kind() {
	case reflect.Slice, reflect.Array:
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("%s must contain at least %s items", name, param)
		case "max":
			return fmt.Sprintf("%s must contain less than or equal to %s items", name, param)
		}
	case reflect.String:
		switch fe.Tag() {
		case "min":
			if param == "1" {
				return name + " is not allowed to be empty"
			}
			return fmt.Sprintf("%s length must be at least %s characters long", name, param)
		case "max":
			return fmt.Sprintf("%s length must be less than or equal to %s characters long", name, param)
		}
	default:
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("%s must be greater than or equal to %s", name, param)
		case "max":
			return fmt.Sprintf("%s must be less than or equal to %s", name, param)
		}
	}
	return fmt.Sprintf("%s failed the %q rule", name, fe.Tag())
}

func quote(field string) string {
	return `"` + field + `"`
}

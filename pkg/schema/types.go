package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the type string this Type parses from (e.g. "int,min=0").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON numbers decode as float64; whole numbers are accepted.
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	if _, ok := number(value); !ok {
		return fmt.Errorf("expected float, got %T", value)
	}
	return nil
}

type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// SliceType validates slices whose elements all match one type.
type SliceType struct {
	elem Type
}

func (t *SliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Constraint is an additional check applied after a base type matched.
type Constraint struct {
	name  string
	check func(any) error
}

// ConstrainedType is a base type narrowed by constraints.
type ConstrainedType struct {
	base        Type
	constraints []Constraint
}

func (t *ConstrainedType) Name() string {
	parts := []string{t.base.Name()}
	for _, c := range t.constraints {
		parts = append(parts, c.name)
	}
	return strings.Join(parts, ",")
}

func (t *ConstrainedType) Validate(value any) error {
	if err := t.base.Validate(value); err != nil {
		return err
	}
	for _, c := range t.constraints {
		if err := c.check(value); err != nil {
			return err
		}
	}
	return nil
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(any) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value any) error { return t.validate(value) }

func String() Type { return &StringType{} }

func Int() Type { return &IntType{} }

func Float() Type { return &FloatType{} }

func Bool() Type { return &BoolType{} }

// Slice creates a slice type validator for elements of the given type.
func Slice(elem Type) Type { return &SliceType{elem: elem} }

// Custom creates a validator from a function. name is used for serialization only.
func Custom(name string, validate func(any) error) Type {
	return &CustomType{name: name, validate: validate}
}

// Constrain narrows base with constraints, checked in order.
func Constrain(base Type, constraints ...Constraint) Type {
	return &ConstrainedType{base: base, constraints: constraints}
}

// Min requires a numeric value >= n.
func Min(n float64) Constraint {
	return Constraint{
		name: "min=" + strconv.FormatFloat(n, 'f', -1, 64),
		check: func(v any) error {
			if f, ok := number(v); ok && f < n {
				return fmt.Errorf("must be >= %v", n)
			}
			return nil
		},
	}
}

// Max requires a numeric value <= n.
func Max(n float64) Constraint {
	return Constraint{
		name: "max=" + strconv.FormatFloat(n, 'f', -1, 64),
		check: func(v any) error {
			if f, ok := number(v); ok && f > n {
				return fmt.Errorf("must be <= %v", n)
			}
			return nil
		},
	}
}

// NonEmpty rejects empty strings and empty slices.
func NonEmpty() Constraint {
	return Constraint{
		name: "nonempty",
		check: func(v any) error {
			rv := reflect.ValueOf(v)
			switch rv.Kind() {
			case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
				if rv.Len() == 0 {
					return fmt.Errorf("must not be empty")
				}
			}
			return nil
		},
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ParseType converts a type string to a Type.
// The grammar is a base type ("string", "int", "float", "bool" or "[<type>]")
// followed by optional comma-separated constraints ("min=N", "max=N", "nonempty").
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if strings.HasPrefix(typeStr, "[") {
		end := strings.LastIndex(typeStr, "]")
		if end < 0 {
			return nil, fmt.Errorf("unterminated slice type: %s", typeStr)
		}
		elem, err := ParseType(typeStr[1:end])
		if err != nil {
			return nil, err
		}
		return withConstraints(Slice(elem), strings.TrimPrefix(typeStr[end+1:], ","))
	}

	baseStr, rest, _ := strings.Cut(typeStr, ",")
	var base Type
	switch strings.TrimSpace(baseStr) {
	case "string":
		base = String()
	case "int":
		base = Int()
	case "float":
		base = Float()
	case "bool":
		base = Bool()
	default:
		return nil, fmt.Errorf("unsupported type: %s", baseStr)
	}
	return withConstraints(base, rest)
}

func withConstraints(base Type, spec string) (Type, error) {
	if strings.TrimSpace(spec) == "" {
		return base, nil
	}

	var constraints []Constraint
	for _, raw := range strings.Split(spec, ",") {
		key, val, hasVal := strings.Cut(strings.TrimSpace(raw), "=")
		switch key {
		case "nonempty":
			constraints = append(constraints, NonEmpty())
		case "min", "max":
			if !hasVal {
				return nil, fmt.Errorf("constraint %s requires a value", key)
			}
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", key, err)
			}
			if key == "min" {
				constraints = append(constraints, Min(n))
			} else {
				constraints = append(constraints, Max(n))
			}
		default:
			return nil, fmt.Errorf("unsupported constraint: %s", raw)
		}
	}
	return Constrain(base, constraints...), nil
}

// ParseTypeMap converts a map of paths to type strings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}

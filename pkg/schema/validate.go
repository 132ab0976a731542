package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Schema is a map of semantic paths to their expected types.
type Schema map[string]Type

// Check validates one value against the rule for key.
// Keys without a rule are accepted, and so is nil, which clears a field.
func (s Schema) Check(key string, value any) error {
	typ, ok := s[key]
	if !ok || typ == nil || value == nil {
		return nil
	}
	if err := typ.Validate(value); err != nil {
		return &ValidationError{Key: key, Reason: err.Error(), Value: value}
	}
	return nil
}

// Validate checks every entry of data that has a rule, in sorted key order.
// It returns an *AggregateError listing all failures.
func Validate(s Schema, data map[string]any) error {
	if len(s) == 0 {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := s.Check(key, data[key]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// UnmarshalYAML reads a schema written as a mapping of paths to type strings.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the schema back as type strings.
func (s Schema) MarshalYAML() (any, error) {
	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}
	return raw, nil
}

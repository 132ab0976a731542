package runtime

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Definition declares the shape and behavior of a runtime.
type Definition struct {
	Schema   schema.Schema                 `yaml:"schema"`
	Initial  Initial                       `yaml:"initial"`
	Derived  map[string]DerivationSpec     `yaml:"derived"`
	Policies map[string]domain.FieldPolicy `yaml:"policies"`
	Actions  map[string]ActionSpec         `yaml:"actions"`
}

// Initial holds the starting values of the two writable namespaces.
type Initial struct {
	Data  map[string]any `yaml:"data"`
	State map[string]any `yaml:"state"`
}

// DerivationSpec is a declarative derived value.
// Exactly one field should be set.
type DerivationSpec struct {
	// AllPresent is true when every listed path holds a non-empty value accepted by the schema.
	AllPresent []string `yaml:"all_present"`
	// Sum adds the numeric values of the listed paths.
	Sum []string `yaml:"sum"`
}

// ActionSpec is a declarative action: preconditions plus values written on success.
type ActionSpec struct {
	Preconditions []domain.Precondition `yaml:"preconditions"`
	Set           map[string]any        `yaml:"set"`
}

// LoadDefinition decodes a YAML definition.
func LoadDefinition(r io.Reader) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && err != io.EOF {
		return Definition{}, fmt.Errorf("failed to decode runtime definition: %w", err)
	}
	return def, def.Validate()
}

// LoadDefinitionFile reads a YAML definition from disk.
func LoadDefinitionFile(path string) (Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to open runtime definition: %w", err)
	}
	defer f.Close()
	return LoadDefinition(f)
}

// Validate checks namespaces of derived values and action writes.
func (d Definition) Validate() error {
	for path, spec := range d.Derived {
		if domain.NamespaceOf(path) != domain.NamespaceDerived {
			return fmt.Errorf("derived value %q must live in the derived namespace", path)
		}
		if len(spec.AllPresent) > 0 && len(spec.Sum) > 0 {
			return fmt.Errorf("derived value %q declares more than one derivation", path)
		}
	}
	for id, action := range d.Actions {
		for path := range action.Set {
			if !domain.NamespaceOf(path).IsExternallyOwned() {
				return fmt.Errorf("action %q writes read-only path %q", id, path)
			}
		}
	}
	return nil
}

// compile turns a declarative derivation into a function.
func (s DerivationSpec) compile(rules schema.Schema) Derivation {
	switch {
	case len(s.AllPresent) > 0:
		required := append([]string(nil), s.AllPresent...)
		return func(get func(string) any) any {
			for _, p := range required {
				v := get(p)
				if v == nil {
					return false
				}
				if str, ok := v.(string); ok && str == "" {
					return false
				}
				if rules.Check(p, v) != nil {
					return false
				}
			}
			return true
		}
	case len(s.Sum) > 0:
		terms := append([]string(nil), s.Sum...)
		return func(get func(string) any) any {
			var total float64
			for _, p := range terms {
				if f, ok := toFloat(get(p)); ok {
					total += f
				}
			}
			return total
		}
	}
	return func(func(string) any) any { return nil }
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

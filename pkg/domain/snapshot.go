package domain

// Snapshot is the runtime's materialized view at one instant.
// Consumers must treat it as immutable.
type Snapshot struct {
	Data  map[string]any `json:"data"`
	State map[string]any `json:"state"`
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Data:  make(map[string]any),
		State: make(map[string]any),
	}
}

// Clone returns a deep copy of the snapshot (maps and slices are copied, other values shared).
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Data:  cloneMap(s.Data),
		State: cloneMap(s.State),
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// FieldPolicy describes how a field should be presented and edited.
type FieldPolicy struct {
	Relevant bool `json:"relevant" yaml:"relevant"`
	Editable bool `json:"editable" yaml:"editable"`
	Required bool `json:"required" yaml:"required"`
}

// DefaultFieldPolicy is the policy of a field without explicit rules.
func DefaultFieldPolicy() FieldPolicy {
	return FieldPolicy{Relevant: true, Editable: true}
}

// Precondition is a runtime-evaluated gate on an action.
type Precondition struct {
	// Path is the value the gate inspects (usually derived.*).
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Expect is the value Path must hold for the gate to pass.
	Expect any `json:"expect" yaml:"expect" mapstructure:"expect"`
	// Satisfied is filled in by the runtime when reporting preconditions.
	Satisfied bool `json:"satisfied" yaml:"-" mapstructure:"-"`
}

// Validity is an external store's own view on a field.
type Validity struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

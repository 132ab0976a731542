package dsl

import (
	"fmt"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/manifesto-ai/bridge/pkg/schema"
)

// Builder manages the definition construction.
type Builder struct {
	fields  map[string]*FieldBuilder
	derived map[string]*DerivedBuilder
	actions map[string]*ActionBuilder
	order   []string // field paths in declaration order
}

// New creates a new definition builder.
func New() *Builder {
	return &Builder{
		fields:  make(map[string]*FieldBuilder),
		derived: make(map[string]*DerivedBuilder),
		actions: make(map[string]*ActionBuilder),
	}
}

// Field declares a data.* or state.* field.
// If the field already exists, it returns the existing builder.
func (b *Builder) Field(path string) *FieldBuilder {
	if fb, ok := b.fields[path]; ok {
		return fb
	}
	fb := &FieldBuilder{path: path}
	b.fields[path] = fb
	b.order = append(b.order, path)
	return fb
}

// Derive declares a derived.* value.
// If the value already exists, it returns the existing builder.
func (b *Builder) Derive(path string) *DerivedBuilder {
	if db, ok := b.derived[path]; ok {
		return db
	}
	db := &DerivedBuilder{}
	b.derived[path] = db
	return db
}

// Action declares an action.
// If the action already exists, it returns the existing builder.
func (b *Builder) Action(id string) *ActionBuilder {
	if ab, ok := b.actions[id]; ok {
		return ab
	}
	ab := &ActionBuilder{}
	b.actions[id] = ab
	return ab
}

// Build compiles the declarations into a validated runtime definition.
func (b *Builder) Build() (runtime.Definition, error) {
	def := runtime.Definition{
		Schema:   schema.Schema{},
		Derived:  make(map[string]runtime.DerivationSpec, len(b.derived)),
		Policies: make(map[string]domain.FieldPolicy),
		Actions:  make(map[string]runtime.ActionSpec, len(b.actions)),
	}

	for _, path := range b.order {
		fb := b.fields[path]
		ns := domain.NamespaceOf(path)
		if !ns.IsExternallyOwned() {
			return runtime.Definition{}, fmt.Errorf("field %q must live in the data or state namespace", path)
		}
		if fb.typ != nil {
			def.Schema[path] = fb.typ
		}
		if fb.policy != nil {
			def.Policies[path] = *fb.policy
		}
		if fb.hasInitial {
			segments := paths.Trim(path)
			if ns == domain.NamespaceData {
				def.Initial.Data = paths.Set(def.Initial.Data, segments, fb.initial)
			} else {
				def.Initial.State = paths.Set(def.Initial.State, segments, fb.initial)
			}
		}
	}

	for path, db := range b.derived {
		def.Derived[path] = db.spec
	}
	for id, ab := range b.actions {
		def.Actions[id] = ab.spec
	}

	if err := def.Validate(); err != nil {
		return runtime.Definition{}, fmt.Errorf("failed to build definition: %w", err)
	}
	return def, nil
}

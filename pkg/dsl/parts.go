package dsl

import (
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/manifesto-ai/bridge/pkg/schema"
)

// FieldBuilder provides a fluent API for configuring a field.
type FieldBuilder struct {
	path       string
	typ        schema.Type
	policy     *domain.FieldPolicy
	initial    any
	hasInitial bool
}

// Type sets the schema rule values must satisfy.
func (f *FieldBuilder) Type(t schema.Type) *FieldBuilder {
	f.typ = t
	return f
}

// Initial sets the value the runtime starts with.
func (f *FieldBuilder) Initial(value any) *FieldBuilder {
	f.initial = value
	f.hasInitial = true
	return f
}

// Policy sets the presentation policy of the field.
func (f *FieldBuilder) Policy(p domain.FieldPolicy) *FieldBuilder {
	f.policy = &p
	return f
}

func (f *FieldBuilder) editPolicy(edit func(*domain.FieldPolicy)) *FieldBuilder {
	if f.policy == nil {
		p := domain.DefaultFieldPolicy()
		f.policy = &p
	}
	edit(f.policy)
	return f
}

// Hidden marks the field as neither relevant nor editable.
func (f *FieldBuilder) Hidden() *FieldBuilder {
	return f.editPolicy(func(p *domain.FieldPolicy) {
		p.Relevant = false
		p.Editable = false
	})
}

// ReadOnly marks the field as not editable.
func (f *FieldBuilder) ReadOnly() *FieldBuilder {
	return f.editPolicy(func(p *domain.FieldPolicy) { p.Editable = false })
}

// Required marks the field as required.
func (f *FieldBuilder) Required() *FieldBuilder {
	return f.editPolicy(func(p *domain.FieldPolicy) { p.Required = true })
}

// DerivedBuilder provides a fluent API for configuring a derived value.
// The last derivation set wins.
type DerivedBuilder struct {
	spec runtime.DerivationSpec
}

// AllPresent derives true when every path holds a non-empty value accepted by the schema.
func (d *DerivedBuilder) AllPresent(paths ...string) *DerivedBuilder {
	d.spec = runtime.DerivationSpec{AllPresent: paths}
	return d
}

// Sum derives the total of the numeric values at paths.
func (d *DerivedBuilder) Sum(paths ...string) *DerivedBuilder {
	d.spec = runtime.DerivationSpec{Sum: paths}
	return d
}

// ActionBuilder provides a fluent API for configuring an action.
type ActionBuilder struct {
	spec runtime.ActionSpec
}

// When adds a precondition: path must hold expect for the action to run.
func (a *ActionBuilder) When(path string, expect any) *ActionBuilder {
	a.spec.Preconditions = append(a.spec.Preconditions, domain.Precondition{Path: path, Expect: expect})
	return a
}

// Set adds a value the action writes when it runs.
func (a *ActionBuilder) Set(path string, value any) *ActionBuilder {
	if a.spec.Set == nil {
		a.spec.Set = make(map[string]any)
	}
	a.spec.Set[path] = value
	return a
}

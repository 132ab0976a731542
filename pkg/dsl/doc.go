/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing runtime definitions.

It allows developers to declare fields, derived values, policies and actions using a type-safe, fluent
builder pattern instead of relying on external YAML files. This is particularly useful for dynamic
definitions, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	b := dsl.New()

	b.Field("data.name").Type(schema.String()).Initial("")
	b.Field("data.age").Type(schema.Constrain(schema.Int(), schema.Min(0)))
	b.Field("data.secret").Hidden()

	b.Derive("derived.canSubmit").AllPresent("data.name", "data.age")

	b.Action("submit").
		When("derived.canSubmit", true).
		Set("state.submitted", true)

	// The resulting definition is what runtime.New expects
	def, err := b.Build()
	if err != nil {
		// ...
	}
	rt := runtime.New(def)
*/
package dsl

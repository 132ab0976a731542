// Package schema provides field rules for the reference runtime.
//
// A Schema maps semantic paths to a Type. Built-in types cover strings, integers,
// floats, booleans and slices; Constrain adds numeric bounds and non-empty checks
// on top of a base type.
//
//	s := schema.Schema{
//	    "data.name": schema.Constrain(schema.String(), schema.NonEmpty()),
//	    "data.age":  schema.Constrain(schema.Int(), schema.Min(0)),
//	    "data.tags": schema.Slice(schema.String()),
//	}
//
//	if err := s.Check("data.age", -5); err != nil {
//	    // *schema.ValidationError{Key: "data.age", ...}
//	}
//
// Schemas can also be parsed from type strings, which is how runtime definitions
// are written in YAML:
//
//	data.name: string,nonempty
//	data.age: int,min=0,max=150
//	data.tags: "[string]"
//
// Values not mentioned by a schema are accepted unchanged.
package schema

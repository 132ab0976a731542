/*
Package runtime provides a small in-process domain runtime implementing ports.Runtime.

The bridge treats its runtime as an external collaborator. This package exists so the
bridge can be exercised end to end (tests, the CLI demo and the HTTP server) without
a separate domain engine. It offers:

  - nested data.* and state.* values addressed with package paths;
  - validation of written values through package schema;
  - derived.* values recomputed after every write;
  - actions gated by preconditions, with Go or declarative (YAML) effects;
  - static field policies;
  - synchronous change notifications, fired only when values actually change.

A runtime can be declared in YAML:

	schema:
	  data.name: string
	  data.age: int,min=0
	initial:
	  data: {name: "", age: null}
	derived:
	  derived.canSubmit:
	    all_present: [data.name, data.age]
	actions:
	  submit:
	    preconditions:
	      - {path: derived.canSubmit, expect: true}
	    set:
	      state.submitted: true
*/
package runtime

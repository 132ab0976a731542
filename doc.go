/*
Package bridge keeps a domain runtime and an external store (a form, a cache, a file, a UI) in step.

The runtime owns validation, derived values and actions. The external store is reached through two
capability interfaces from package ports: an Adapter to read it and an Actuator to write it. A Bridge
wires them together in one or both directions.

# Directions

  - Pull: when a subscribable adapter reports changed paths, their values are read from the adapter
    and written into the runtime. Values the runtime rejects are not fatal; they are logged and handed
    to the handler set with WithErrorHandler.
  - Push: runtime change notifications are collected into a pending set and flushed through the
    actuator, immediately or after a debounce window. A flush always reads the runtime's current value,
    so rapid writes to one path push only the last one. derived.* paths are never pushed.

# Failures

Execute, Focus, Navigate and APICall always return a *domain.Error (or nil), even after Dispose.
Get, FieldPolicy, IsActionAvailable, Capture and Sync return domain.ErrDisposed after Dispose.

# Usage

	def, err := runtime.LoadDefinitionFile("profile.yaml")
	if err != nil {
		log.Fatal(err)
	}
	rt := runtime.New(def)
	store := memory.New()

	b, err := bridge.New(rt, store, store, bridge.WithDebounce(100*time.Millisecond))
	if err != nil {
		log.Fatal(err)
	}
	defer b.Dispose()

	err = b.Execute(ctx, domain.SetValue{Path: "data.age", Value: -5})
	if domain.CodeOf(err) == domain.CodeValidation {
		log.Println("rejected:", err)
	}
*/
package bridge

package middleware

import (
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// Middleware allows wrapping a Store to add behavior.
type Middleware func(ports.Store) ports.Store

// Chain wraps store with every middleware; the first one ends up outermost.
func Chain(store ports.Store, mws ...Middleware) ports.Store {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// base forwards to next, including the optional batch and subscription capabilities.
// A wrapped store that is not reactive yields a subscription that never fires.
type base struct {
	ports.Store
}

func (b base) Subscribe(listener func(changed []string)) func() {
	sub, ok := b.Store.(ports.Subscribable)
	if !ok {
		return func() {}
	}
	return sub.Subscribe(listener)
}

func (b base) GetValidity(path string) domain.Validity {
	if r, ok := b.Store.(ports.ValidityReader); ok {
		return r.GetValidity(path)
	}
	return domain.Validity{Valid: true}
}

func (b base) setManyData(values map[string]any) {
	if w, ok := b.Store.(ports.BatchDataWriter); ok {
		w.SetManyData(values)
		return
	}
	for path, v := range values {
		b.Store.SetData(path, v)
	}
}

func (b base) setManyState(values map[string]any) {
	if w, ok := b.Store.(ports.BatchStateWriter); ok {
		w.SetManyState(values)
		return
	}
	for path, v := range values {
		b.Store.SetState(path, v)
	}
}

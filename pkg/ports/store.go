package ports

import (
	"context"

	"github.com/manifesto-ai/bridge/pkg/domain"
)

// Adapter is the read side of an external store.
// All paths are full semantic paths (e.g. "data.name", "state.loading").
type Adapter interface {
	// GetData returns the current value of a data.* path. It must be side-effect-free.
	GetData(path string) any

	// GetState returns the current value of a state.* path. It must be side-effect-free.
	GetState(path string) any

	// CaptureData returns every data.* value as a flat path→value map.
	CaptureData() map[string]any

	// CaptureState returns every state.* value as a flat path→value map.
	CaptureState() map[string]any
}

// Subscribable is implemented by reactive adapters.
// The listener receives a non-empty list of changed paths per external mutation batch.
type Subscribable interface {
	Subscribe(listener func(changed []string)) (unsubscribe func())
}

// ValidityReader is implemented by adapters whose store tracks its own field validity.
type ValidityReader interface {
	GetValidity(path string) domain.Validity
}

// Actuator is the write side of an external store.
// Writes are fire-and-forget from the bridge's perspective.
type Actuator interface {
	SetData(path string, value any)
	SetState(path string, value any)
}

// BatchDataWriter is implemented by actuators that can coalesce data writes.
type BatchDataWriter interface {
	SetManyData(values map[string]any)
}

// BatchStateWriter is implemented by actuators that can coalesce state writes.
type BatchStateWriter interface {
	SetManyState(values map[string]any)
}

// Focuser is implemented by actuators that can move input focus to a field.
type Focuser interface {
	Focus(path string)
}

// NavigateMode selects how a navigation is recorded.
type NavigateMode string

const (
	NavigatePush    NavigateMode = "push"
	NavigateReplace NavigateMode = "replace"
)

// Navigator is implemented by actuators that can change the current location.
type Navigator interface {
	Navigate(to string, mode NavigateMode)
}

// APIRequest describes a remote call issued through an actuator.
type APIRequest struct {
	Method  string            `json:"method" mapstructure:"method"`
	URL     string            `json:"url" mapstructure:"url"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	Body    any               `json:"body,omitempty" mapstructure:"body"`
}

// APICaller is implemented by actuators that can perform remote calls.
type APICaller interface {
	APICall(ctx context.Context, req APIRequest) (any, error)
}

// Store is the common shape of store implementations that serve both sides.
type Store interface {
	Adapter
	Actuator
}

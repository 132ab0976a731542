package domain

import (
	"context"
	"time"
)

// Direction is the flow of a synchronization step.
type Direction string

const (
	DirectionPull Direction = "pull" // external store → runtime
	DirectionPush Direction = "push" // runtime → external store
)

// PullEvent describes one batch of changed paths pulled from an adapter.
type PullEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Paths     []string  `json:"paths"`
	Rejected  []string  `json:"rejected,omitempty"` // paths the runtime refused
}

// FlushEvent describes one flush of pending paths to an actuator.
type FlushEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	DataPaths  []string      `json:"data_paths,omitempty"`
	StatePaths []string      `json:"state_paths,omitempty"`
	Dropped    []string      `json:"dropped,omitempty"` // paths outside data/state
	Batched    bool          `json:"batched"`
	Duration   time.Duration `json:"duration"`
}

// CommandEvent describes the outcome of one executed command.
type CommandEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      CommandKind   `json:"kind"`
	Code      ErrorCode     `json:"code,omitempty"` // empty on success
	Duration  time.Duration `json:"duration"`
}

// CaptureEvent describes one capture of the whole external store.
type CaptureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Paths     int       `json:"paths"`
	Failed    bool      `json:"failed"`
}

// Hooks defines callbacks for bridge observability.
// Every field is optional.
type Hooks struct {
	OnPull    func(context.Context, *PullEvent)
	OnFlush   func(context.Context, *FlushEvent)
	OnCommand func(context.Context, *CommandEvent)
	OnCapture func(context.Context, *CaptureEvent)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnPull:    chain(h.OnPull, other.OnPull),
		OnFlush:   chain(h.OnFlush, other.OnFlush),
		OnCommand: chain(h.OnCommand, other.OnCommand),
		OnCapture: chain(h.OnCapture, other.OnCapture),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

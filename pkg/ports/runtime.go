package ports

import (
	"context"

	"github.com/manifesto-ai/bridge/pkg/domain"
)

// SnapshotListener receives a fresh snapshot and the paths that changed since the previous one.
type SnapshotListener func(snapshot domain.Snapshot, changed []string)

// Runtime is the reactive domain-state engine the bridge synchronizes with.
// The bridge trusts its answers and never inspects its internals.
type Runtime interface {
	// Get returns the current value at a semantic path (nil when absent).
	Get(path string) any

	// Set writes one path. Validation failures are reported as *domain.ValidationError.
	Set(path string, value any) error

	// SetMany writes several paths atomically. On failure the error identifies the first
	// failing path (as *domain.ValidationError) and nothing is applied.
	SetMany(updates map[string]any) error

	// Execute runs a named action. It may block until the action's effects settle.
	Execute(ctx context.Context, actionID string, input any) error

	// Subscribe registers a change listener and returns its unsubscribe function.
	// Notification may happen synchronously inside Set/SetMany/Execute.
	Subscribe(listener SnapshotListener) (unsubscribe func())

	// Snapshot returns the current materialized view.
	Snapshot() domain.Snapshot

	// FieldPolicy returns presentation rules for a path.
	FieldPolicy(path string) domain.FieldPolicy

	// Preconditions returns the declared preconditions of an action with their current status.
	Preconditions(actionID string) []domain.Precondition
}

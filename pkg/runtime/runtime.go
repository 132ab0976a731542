package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
	"github.com/manifesto-ai/bridge/pkg/schema"
)

var (
	// ErrUnknownAction is returned by Execute for an undeclared action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrPreconditionFailed is returned by Execute when an action is not available.
	ErrPreconditionFailed = errors.New("action preconditions not satisfied")
)

// Derivation computes a derived value from current values.
type Derivation func(get func(path string) any) any

// Effect is the body of an action. It may block and may write through rt.
type Effect func(ctx context.Context, rt *Runtime, input any) error

// Action is a named operation gated by preconditions.
type Action struct {
	Preconditions []domain.Precondition
	Effect        Effect
}

// Runtime is an in-process implementation of ports.Runtime.
// It is safe for concurrent use; listeners are called outside its internal lock.
type Runtime struct {
	mu       sync.RWMutex
	data     map[string]any
	state    map[string]any
	derived  map[string]any
	rules    schema.Schema
	derivers map[string]Derivation
	order    []string // derived paths in evaluation order
	actions  map[string]Action
	policies map[string]domain.FieldPolicy

	listenersMu sync.Mutex
	listeners   map[int]ports.SnapshotListener
	nextID      int

	logger *slog.Logger
}

var _ ports.Runtime = (*Runtime)(nil)

// Option configures the Runtime.
type Option func(*Runtime)

// WithLogger configures a logger for the Runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithDerived registers a derived value computed by fn.
func WithDerived(path string, fn Derivation) Option {
	return func(r *Runtime) {
		r.derivers[path] = fn
	}
}

// WithAction registers an action with a Go effect.
func WithAction(id string, action Action) Option {
	return func(r *Runtime) {
		r.actions[id] = action
	}
}

// New creates a runtime from a definition.
func New(def Definition, opts ...Option) *Runtime {
	r := &Runtime{
		data:      domain.Snapshot{Data: def.Initial.Data}.Clone().Data,
		state:     domain.Snapshot{State: def.Initial.State}.Clone().State,
		derived:   make(map[string]any),
		rules:     def.Schema,
		derivers:  make(map[string]Derivation),
		actions:   make(map[string]Action),
		policies:  make(map[string]domain.FieldPolicy),
		listeners: make(map[int]ports.SnapshotListener),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if r.rules == nil {
		r.rules = schema.Schema{}
	}

	for path, spec := range def.Derived {
		r.derivers[path] = spec.compile(r.rules)
	}
	for path, policy := range def.Policies {
		r.policies[path] = policy
	}
	for id, spec := range def.Actions {
		r.actions[id] = declarativeAction(spec)
	}

	for _, opt := range opts {
		opt(r)
	}

	r.order = sortedKeys(r.derivers)
	r.recompute()
	return r
}

func declarativeAction(spec ActionSpec) Action {
	updates := spec.Set
	return Action{
		Preconditions: spec.Preconditions,
		Effect: func(ctx context.Context, rt *Runtime, input any) error {
			if len(updates) == 0 {
				return nil
			}
			return rt.SetMany(updates)
		},
	}
}

// Get returns the value at path, or nil when absent.
func (r *Runtime) Get(path string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(path)
}

// get reads path; callers must hold r.mu.
func (r *Runtime) get(path string) any {
	var root map[string]any
	switch domain.NamespaceOf(path) {
	case domain.NamespaceData:
		root = r.data
	case domain.NamespaceState:
		root = r.state
	case domain.NamespaceDerived:
		return r.derived[path]
	default:
		return nil
	}
	v, _ := paths.Get(root, paths.Trim(path))
	return v
}

// Set writes one path.
func (r *Runtime) Set(path string, value any) error {
	return r.SetMany(map[string]any{path: value})
}

// SetMany validates every update (in sorted path order) and applies them all, or none.
func (r *Runtime) SetMany(updates map[string]any) error {
	keys := sortedKeys(updates)

	r.mu.Lock()
	for _, path := range keys {
		if err := r.check(path, updates[path]); err != nil {
			r.mu.Unlock()
			return err
		}
	}

	before := r.flat()
	for _, path := range keys {
		r.assign(path, updates[path])
	}
	r.recompute()
	changed := domain.Diff(before, r.flat())
	snapshot := r.snapshot()
	r.mu.Unlock()

	if len(changed) > 0 {
		r.notify(snapshot, changed)
	}
	return nil
}

func (r *Runtime) check(path string, value any) error {
	if !domain.NamespaceOf(path).IsExternallyOwned() {
		return &domain.ValidationError{Path: path, Reason: "path is read-only"}
	}
	segments := paths.Trim(path)
	if len(segments) == 0 {
		return &domain.ValidationError{Path: path, Reason: "path has no field"}
	}
	if !paths.Fits(r.root(path), segments) {
		return &domain.ValidationError{Path: path, Reason: "index out of range"}
	}
	if err := r.checkRule(path, value); err != nil {
		return err
	}

	// A field with a rule keeps its shape when a deeper path is written.
	ns := string(domain.NamespaceOf(path))
	for i := 1; i < len(segments); i++ {
		ancestor := paths.Join(append([]string{ns}, segments[:i]...)...)
		if _, ok := r.rules[ancestor]; !ok {
			continue
		}
		holder := domain.Snapshot{Data: map[string]any{"v": r.get(ancestor)}}.Clone().Data
		holder = paths.Set(holder, append([]string{"v"}, segments[i:]...), value)
		if err := r.checkRule(ancestor, holder["v"]); err != nil {
			return err
		}
	}

	// Each leaf of a map value meets its own rule.
	if _, ok := value.(map[string]any); ok {
		for leaf, v := range paths.Flatten(value, path) {
			if err := r.checkRule(leaf, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runtime) checkRule(path string, value any) error {
	if err := r.rules.Check(path, value); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return &domain.ValidationError{Path: path, Reason: ve.Reason}
		}
		return &domain.ValidationError{Path: path, Reason: err.Error()}
	}
	return nil
}

// root returns the container of path's namespace; callers must hold r.mu.
func (r *Runtime) root(path string) map[string]any {
	if domain.NamespaceOf(path) == domain.NamespaceState {
		return r.state
	}
	return r.data
}

func (r *Runtime) assign(path string, value any) {
	segments := paths.Trim(path)
	switch domain.NamespaceOf(path) {
	case domain.NamespaceData:
		r.data = paths.Set(r.data, segments, value)
	case domain.NamespaceState:
		r.state = paths.Set(r.state, segments, value)
	}
}

// recompute refreshes derived values; callers must hold r.mu.
func (r *Runtime) recompute() {
	for _, path := range r.order {
		r.derived[path] = r.derivers[path](r.get)
	}
}

// flat returns every leaf path; callers must hold r.mu.
func (r *Runtime) flat() map[string]any {
	out := make(map[string]any)
	for k, v := range paths.Flatten(r.data, string(domain.NamespaceData)) {
		out[k] = v
	}
	for k, v := range paths.Flatten(r.state, string(domain.NamespaceState)) {
		out[k] = v
	}
	for k, v := range r.derived {
		out[k] = v
	}
	return out
}

// snapshot copies current values; callers must hold r.mu.
func (r *Runtime) snapshot() domain.Snapshot {
	return domain.Snapshot{Data: r.data, State: r.state}.Clone()
}

func (r *Runtime) notify(snapshot domain.Snapshot, changed []string) {
	r.listenersMu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]ports.SnapshotListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}
	r.listenersMu.Unlock()

	for _, l := range listeners {
		l(snapshot, changed)
	}
}

// Subscribe registers a listener called after every effective change.
func (r *Runtime) Subscribe(listener ports.SnapshotListener) func() {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = listener

	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

// Snapshot returns a copy of the current data and state.
func (r *Runtime) Snapshot() domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

// FieldPolicy returns the declared policy for path, or the default policy.
func (r *Runtime) FieldPolicy(path string) domain.FieldPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[path]; ok {
		return p
	}
	return domain.DefaultFieldPolicy()
}

// Preconditions reports the declared preconditions of an action with their current status.
// Unknown actions have no preconditions.
func (r *Runtime) Preconditions(actionID string) []domain.Precondition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[actionID]
	if !ok {
		return nil
	}
	out := make([]domain.Precondition, len(action.Preconditions))
	for i, p := range action.Preconditions {
		p.Satisfied = matches(r.get(p.Path), p.Expect)
		out[i] = p
	}
	return out
}

func matches(actual, expect any) bool {
	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expect); ok {
			return a == e
		}
	}
	return reflect.DeepEqual(actual, expect)
}

// Execute runs an action after checking its preconditions.
func (r *Runtime) Execute(ctx context.Context, actionID string, input any) error {
	r.mu.RLock()
	action, ok := r.actions[actionID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}

	var unmet []string
	for _, p := range r.Preconditions(actionID) {
		if !p.Satisfied {
			unmet = append(unmet, p.Path)
		}
	}
	if len(unmet) > 0 {
		return fmt.Errorf("%w: %s %v", ErrPreconditionFailed, actionID, unmet)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	r.logger.Debug("Executing action", "action", actionID)
	if action.Effect == nil {
		return nil
	}
	return action.Effect(ctx, r, input)
}

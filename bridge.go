package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/manifesto-ai/bridge/internal/config"
	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// SyncMode selects which directions a Bridge synchronizes.
type SyncMode string

const (
	SyncPush          SyncMode = "push"          // runtime → external store
	SyncPull          SyncMode = "pull"          // external store → runtime
	SyncBidirectional SyncMode = "bidirectional" // both
)

// ParseSyncMode converts a configured mode name.
func ParseSyncMode(s string) (SyncMode, error) {
	switch m := SyncMode(s); m {
	case SyncPush, SyncPull, SyncBidirectional:
		return m, nil
	}
	return "", fmt.Errorf("invalid sync mode %q", s)
}

func (m SyncMode) pulls() bool { return m == SyncPull || m == SyncBidirectional }
func (m SyncMode) pushes() bool { return m == SyncPush || m == SyncBidirectional }

// Bridge keeps a domain runtime and an external store in step.
// It is safe for concurrent use. No internal lock is held while the runtime,
// adapter, actuator or a listener is called.
type Bridge struct {
	runtime  ports.Runtime
	adapter  ports.Adapter
	actuator ports.Actuator

	mode     SyncMode
	autoSync bool
	debounce time.Duration
	hooks    domain.Hooks
	onError  func(*domain.Error)
	logger   *slog.Logger
	optErr   error

	mu        sync.Mutex
	disposed  bool
	pending   domain.ChangeSet
	timer     *time.Timer
	timerGen  uint64
	flushing  bool
	idle      *sync.Cond // signalled on b.mu when a flush loop ends
	listeners map[int]ports.SnapshotListener
	nextID    int
	detach    []func()
}

// Option defines a functional option for configuring the Bridge.
type Option func(*Bridge)

// WithSyncMode selects the synchronized directions (default bidirectional).
func WithSyncMode(mode SyncMode) Option {
	return func(b *Bridge) {
		b.mode = mode
	}
}

// WithAutoSync controls whether runtime changes are pushed automatically (default true).
// Listeners are notified either way.
func WithAutoSync(enabled bool) Option {
	return func(b *Bridge) {
		b.autoSync = enabled
	}
}

// WithDebounce sets the quiescence window before a push (default 0, synchronous).
func WithDebounce(d time.Duration) Option {
	return func(b *Bridge) {
		b.debounce = d
	}
}

// WithLogger sets a custom structured logger for the bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithHooks registers observability hooks. Repeated calls accumulate.
func WithHooks(hooks domain.Hooks) Option {
	return func(b *Bridge) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithErrorHandler receives failures that have no caller to return to:
// rejected pulled values, rejected captures and recovered sync panics.
func WithErrorHandler(fn func(*domain.Error)) Option {
	return func(b *Bridge) {
		b.onError = fn
	}
}

// WithConfig applies file-based sync settings.
func WithConfig(cfg config.Sync) Option {
	return func(b *Bridge) {
		mode, err := ParseSyncMode(cfg.Mode)
		if err != nil {
			b.optErr = err
			return
		}
		b.mode = mode
		b.autoSync = cfg.AutoSync
		b.debounce = cfg.Debounce
	}
}

// New wires a runtime to an external store.
// The pull subscription is installed only when the adapter implements ports.Subscribable.
func New(rt ports.Runtime, adapter ports.Adapter, actuator ports.Actuator, opts ...Option) (*Bridge, error) {
	if rt == nil {
		return nil, errors.New("runtime is required")
	}
	if adapter == nil || actuator == nil {
		return nil, errors.New("adapter and actuator are required")
	}

	b := &Bridge{
		runtime:   rt,
		adapter:   adapter,
		actuator:  actuator,
		mode:      SyncBidirectional,
		autoSync:  true,
		listeners: make(map[int]ports.SnapshotListener),
	}
	b.idle = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}

	if b.optErr != nil {
		return nil, b.optErr
	}
	if _, err := ParseSyncMode(string(b.mode)); err != nil {
		return nil, err
	}
	if b.debounce < 0 {
		return nil, errors.New("debounce must not be negative")
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}

	if b.mode.pulls() {
		if sub, ok := adapter.(ports.Subscribable); ok {
			b.detach = append(b.detach, sub.Subscribe(b.pull))
		} else {
			b.logger.Debug("Adapter is not subscribable, pull disabled")
		}
	}
	if b.mode.pushes() {
		b.detach = append(b.detach, rt.Subscribe(b.onRuntimeChange))
	}

	b.logger.Debug("Bridge created", "mode", b.mode, "auto_sync", b.autoSync, "debounce", b.debounce)
	return b, nil
}

// Get returns the runtime value at path.
func (b *Bridge) Get(path string) (any, error) {
	if b.Disposed() {
		return nil, domain.ErrDisposed
	}
	return b.runtime.Get(path), nil
}

// Snapshot returns the runtime's current data and state.
func (b *Bridge) Snapshot() (domain.Snapshot, error) {
	if b.Disposed() {
		return domain.Snapshot{}, domain.ErrDisposed
	}
	return b.runtime.Snapshot(), nil
}

// FieldPolicy returns the runtime policy for path.
func (b *Bridge) FieldPolicy(path string) (domain.FieldPolicy, error) {
	if b.Disposed() {
		return domain.FieldPolicy{}, domain.ErrDisposed
	}
	return b.runtime.FieldPolicy(path), nil
}

// IsActionAvailable reports whether every precondition of the action is satisfied.
// An action without preconditions is always available.
func (b *Bridge) IsActionAvailable(actionID string) (bool, error) {
	if b.Disposed() {
		return false, domain.ErrDisposed
	}
	for _, p := range b.runtime.Preconditions(actionID) {
		if !p.Satisfied {
			return false, nil
		}
	}
	return true, nil
}

// Validity returns the external store's own view of a field.
func (b *Bridge) Validity(path string) (domain.Validity, error) {
	if b.Disposed() {
		return domain.Validity{}, domain.ErrDisposed
	}
	vr, ok := b.adapter.(ports.ValidityReader)
	if !ok {
		return domain.Validity{}, domain.NewAdapterError("adapter does not report validity", domain.ErrUnsupported)
	}
	return vr.GetValidity(path), nil
}

// Subscribe registers a listener for runtime changes observed by the bridge.
// The returned function unsubscribes and may be called more than once.
func (b *Bridge) Subscribe(listener ports.SnapshotListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return func() {}
	}

	id := b.nextID
	b.nextID++
	b.listeners[id] = listener

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Dispose detaches the bridge from the runtime and the store.
// It is idempotent. Actions already running are not cancelled.
func (b *Bridge) Dispose() {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.disposed = true
	b.stopTimer()
	b.pending.Reset()
	b.listeners = make(map[int]ports.SnapshotListener)
	detach := b.detach
	b.detach = nil
	b.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	b.logger.Debug("Bridge disposed")
}

// Disposed reports whether Dispose has been called.
func (b *Bridge) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// stopTimer cancels a pending debounce; callers must hold b.mu.
func (b *Bridge) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.timerGen++
}

func (b *Bridge) onRuntimeChange(snapshot domain.Snapshot, changed []string) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]ports.SnapshotListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	autoSync := b.autoSync
	b.mu.Unlock()

	if autoSync {
		b.schedule(changed)
	}
	for _, l := range listeners {
		b.notify(l, snapshot, changed)
	}
}

func (b *Bridge) notify(l ports.SnapshotListener, snapshot domain.Snapshot, changed []string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Listener panicked", "panic", r)
		}
	}()
	l(snapshot, changed)
}

func (b *Bridge) report(err *domain.Error) {
	if b.onError != nil {
		b.onError(err)
	}
}

package bridge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// pull copies externally changed values into the runtime.
// Rejected values are logged and reported, never returned.
func (b *Bridge) pull(changed []string) {
	if b.Disposed() || len(changed) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Pull panicked", "panic", r)
			b.report(domain.NewSyncError("", fmt.Errorf("pull panicked: %v", r)))
		}
	}()

	changed = settle(changed, b.external)
	event := &domain.PullEvent{Timestamp: time.Now(), Paths: changed}
	for _, path := range changed {
		value := b.external(path)

		if err := b.runtime.Set(path, value); err != nil {
			event.Rejected = append(event.Rejected, path)
			b.logger.Debug("Pulled value rejected", "path", path, "err", err)
			b.report(domain.NewValidationError(path, err))
		}
	}

	if b.hooks.OnPull != nil {
		b.hooks.OnPull(context.Background(), event)
	}
}

func (b *Bridge) external(path string) any {
	if domain.NamespaceOf(path) == domain.NamespaceState {
		return b.adapter.GetState(path)
	}
	return b.adapter.GetData(path)
}

// settle maps changed paths to the paths whose current values must travel.
// A path that no longer exists inside its parent (the parent became a scalar or
// lost the key) is replaced by the parent, and a path below another path of the
// result is dropped since the ancestor's value carries it. Order is kept.
func settle(changed []string, get func(string) any) []string {
	lifted := make([]string, 0, len(changed))
	seen := make(map[string]bool, len(changed))
	for _, path := range changed {
		p := lift(path, get)
		if !seen[p] {
			seen[p] = true
			lifted = append(lifted, p)
		}
	}

	out := make([]string, 0, len(lifted))
	for _, p := range lifted {
		if !covered(p, seen) {
			out = append(out, p)
		}
	}
	return out
}

func lift(path string, get func(string) any) string {
	for get(path) == nil {
		parent, key, ok := paths.Parent(path)
		if !ok {
			break
		}
		// Namespace roots always hold a map.
		if _, _, nested := paths.Parent(parent); !nested {
			break
		}
		container := get(parent)
		if container == nil || holds(container, key) {
			break
		}
		path = parent
	}
	return path
}

func holds(container any, key string) bool {
	switch c := container.(type) {
	case map[string]any:
		_, ok := c[key]
		return ok
	case []any:
		i, err := strconv.Atoi(key)
		return err == nil && i >= 0 && i < len(c)
	}
	return false
}

func covered(path string, set map[string]bool) bool {
	for {
		parent, _, ok := paths.Parent(path)
		if !ok {
			return false
		}
		if set[parent] {
			return true
		}
		path = parent
	}
}

// schedule adds paths to the pending set and flushes now or after the debounce window.
func (b *Bridge) schedule(changed []string) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.pending.Add(changed...)

	if b.debounce <= 0 {
		b.mu.Unlock()
		if err := b.flush(); err != nil {
			b.report(err)
		}
		return
	}

	b.stopTimer()
	gen := b.timerGen
	b.timer = time.AfterFunc(b.debounce, func() { b.fire(gen) })
	b.mu.Unlock()
}

// fire runs a debounced flush unless the timer was superseded.
func (b *Bridge) fire(gen uint64) {
	b.mu.Lock()
	if b.disposed || gen != b.timerGen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.mu.Unlock()

	if err := b.flush(); err != nil {
		b.report(err)
	}
}

// flush drains the pending set until it is empty.
// Only one flush runs at a time; a request made while one is running leaves
// its paths pending for the running loop.
func (b *Bridge) flush() *domain.Error {
	return b.drain(false)
}

// drain runs the flush loop. With wait set, a caller arriving while another
// goroutine is flushing blocks until that loop ends, so its paths have reached
// the actuator on return. It must not be used from a callback of a running flush.
func (b *Bridge) drain(wait bool) *domain.Error {
	b.mu.Lock()
	for b.flushing {
		if !wait {
			b.mu.Unlock()
			return nil
		}
		b.idle.Wait()
	}
	b.flushing = true

	var first *domain.Error
	for !b.disposed && b.pending.Len() > 0 {
		batch := b.pending.Drain()
		b.mu.Unlock()
		if err := b.push(batch); err != nil && first == nil {
			first = err
		}
		b.mu.Lock()
	}
	b.flushing = false
	b.idle.Broadcast()
	b.mu.Unlock()
	return first
}

// push writes the current runtime values of batch through the actuator.
func (b *Bridge) push(batch []string) (failure *domain.Error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Flush panicked", "panic", r)
			failure = domain.NewSyncError("", fmt.Errorf("flush panicked: %v", r))
		}
	}()

	start := time.Now()
	event := &domain.FlushEvent{Timestamp: start}
	for _, path := range settle(batch, b.runtime.Get) {
		switch domain.NamespaceOf(path) {
		case domain.NamespaceData:
			event.DataPaths = append(event.DataPaths, path)
		case domain.NamespaceState:
			event.StatePaths = append(event.StatePaths, path)
		default:
			event.Dropped = append(event.Dropped, path)
		}
	}

	if len(event.DataPaths) > 0 {
		if w, ok := b.actuator.(ports.BatchDataWriter); ok {
			w.SetManyData(b.values(event.DataPaths))
			event.Batched = true
		} else {
			for _, path := range event.DataPaths {
				b.actuator.SetData(path, b.runtime.Get(path))
			}
		}
	}
	if len(event.StatePaths) > 0 {
		if w, ok := b.actuator.(ports.BatchStateWriter); ok {
			w.SetManyState(b.values(event.StatePaths))
			event.Batched = true
		} else {
			for _, path := range event.StatePaths {
				b.actuator.SetState(path, b.runtime.Get(path))
			}
		}
	}

	event.Duration = time.Since(start)
	b.logger.Debug("Flushed",
		"data", len(event.DataPaths),
		"state", len(event.StatePaths),
		"dropped", len(event.Dropped),
		"batched", event.Batched,
	)
	if b.hooks.OnFlush != nil {
		b.hooks.OnFlush(context.Background(), event)
	}
	return nil
}

func (b *Bridge) values(batch []string) map[string]any {
	out := make(map[string]any, len(batch))
	for _, path := range batch {
		out[path] = b.runtime.Get(path)
	}
	return out
}

// Sync cancels any pending debounce and pushes every current data and state value.
// A flush running on another goroutine is waited for, so every value has reached
// the actuator when Sync returns.
func (b *Bridge) Sync() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return domain.ErrDisposed
	}
	b.stopTimer()
	b.mu.Unlock()

	snapshot := b.runtime.Snapshot()
	all := paths.Flatten(snapshot.Data, string(domain.NamespaceData))
	for k, v := range paths.Flatten(snapshot.State, string(domain.NamespaceState)) {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.mu.Lock()
	b.pending.Add(keys...)
	b.mu.Unlock()

	if err := b.drain(true); err != nil {
		return err
	}
	return nil
}

// Capture pulls every value from the adapter into the runtime in one batch.
// A rejected batch is logged and reported; the runtime's snapshot is returned either way.
func (b *Bridge) Capture() (domain.Snapshot, error) {
	if b.Disposed() {
		return domain.Snapshot{}, domain.ErrDisposed
	}

	updates := make(map[string]any)
	for k, v := range b.adapter.CaptureData() {
		updates[k] = v
	}
	for k, v := range b.adapter.CaptureState() {
		updates[k] = v
	}

	event := &domain.CaptureEvent{Timestamp: time.Now(), Paths: len(updates)}
	if len(updates) > 0 {
		if err := b.runtime.SetMany(updates); err != nil {
			path, _ := domain.ValidationPath(err)
			event.Failed = true
			b.logger.Warn("Capture rejected", "path", path, "err", err)
			b.report(domain.NewValidationError(path, err))
		}
	}

	if b.hooks.OnCapture != nil {
		b.hooks.OnCapture(context.Background(), event)
	}
	return b.runtime.Snapshot(), nil
}

package memory

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// Navigation records one call to Navigate.
type Navigation struct {
	To   string
	Mode ports.NavigateMode
}

// APIHandler answers API calls made through the store.
type APIHandler func(ctx context.Context, req ports.APIRequest) (any, error)

// Store is an in-memory external store holding nested data and state maps.
// It implements every adapter and actuator capability and notifies subscribers
// synchronously whenever a write changes a value. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	data     map[string]any
	state    map[string]any
	validity map[string]domain.Validity

	focused     string
	navigations []Navigation
	apiCalls    []ports.APIRequest
	apiHandler  APIHandler

	listenersMu sync.Mutex
	listeners   map[int]func([]string)
	nextID      int
}

var (
	_ ports.Store            = (*Store)(nil)
	_ ports.Subscribable     = (*Store)(nil)
	_ ports.ValidityReader   = (*Store)(nil)
	_ ports.BatchDataWriter  = (*Store)(nil)
	_ ports.BatchStateWriter = (*Store)(nil)
	_ ports.Focuser          = (*Store)(nil)
	_ ports.Navigator        = (*Store)(nil)
	_ ports.APICaller        = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithData seeds the data namespace with a nested map.
func WithData(data map[string]any) Option {
	return func(s *Store) {
		s.data = domain.Snapshot{Data: data}.Clone().Data
	}
}

// WithState seeds the state namespace with a nested map.
func WithState(state map[string]any) Option {
	return func(s *Store) {
		s.state = domain.Snapshot{State: state}.Clone().State
	}
}

// WithAPIHandler sets the function answering APICall.
func WithAPIHandler(h APIHandler) Option {
	return func(s *Store) {
		s.apiHandler = h
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		data:      make(map[string]any),
		state:     make(map[string]any),
		validity:  make(map[string]domain.Validity),
		listeners: make(map[int]func([]string)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) root(ns domain.Namespace) map[string]any {
	if ns == domain.NamespaceState {
		return s.state
	}
	return s.data
}

func (s *Store) read(ns domain.Namespace, path string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := paths.Get(s.root(ns), paths.Trim(path))
	return clone(v)
}

// GetData returns the value at a data.* path.
func (s *Store) GetData(path string) any {
	return s.read(domain.NamespaceData, path)
}

// GetState returns the value at a state.* path.
func (s *Store) GetState(path string) any {
	return s.read(domain.NamespaceState, path)
}

func (s *Store) capture(ns domain.Namespace) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := paths.Flatten(s.root(ns), string(ns))
	for k, v := range out {
		out[k] = clone(v)
	}
	return out
}

// CaptureData returns every data.* leaf.
func (s *Store) CaptureData() map[string]any {
	return s.capture(domain.NamespaceData)
}

// CaptureState returns every state.* leaf.
func (s *Store) CaptureState() map[string]any {
	return s.capture(domain.NamespaceState)
}

func (s *Store) write(ns domain.Namespace, values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []string
	s.mu.Lock()
	for _, path := range keys {
		segments := paths.Trim(path)
		if len(segments) == 0 {
			continue
		}
		value := clone(values[path])
		if current, ok := paths.Get(s.root(ns), segments); ok && reflect.DeepEqual(current, value) {
			continue
		}
		if ns == domain.NamespaceState {
			s.state = paths.Set(s.state, segments, value)
		} else {
			s.data = paths.Set(s.data, segments, value)
		}
		changed = append(changed, path)
	}
	s.mu.Unlock()

	if len(changed) > 0 {
		s.notify(changed)
	}
}

// SetData writes a data.* path.
func (s *Store) SetData(path string, value any) {
	s.write(domain.NamespaceData, map[string]any{path: value})
}

// SetState writes a state.* path.
func (s *Store) SetState(path string, value any) {
	s.write(domain.NamespaceState, map[string]any{path: value})
}

// SetManyData writes several data.* paths with one notification.
func (s *Store) SetManyData(values map[string]any) {
	s.write(domain.NamespaceData, values)
}

// SetManyState writes several state.* paths with one notification.
func (s *Store) SetManyState(values map[string]any) {
	s.write(domain.NamespaceState, values)
}

// Subscribe registers a listener for changed paths.
func (s *Store) Subscribe(listener func(changed []string)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(changed []string) {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func([]string), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(changed)
	}
}

// SetValidity records the store's own validity for a path.
func (s *Store) SetValidity(path string, v domain.Validity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validity[path] = v
}

// GetValidity returns the recorded validity, or valid when none was recorded.
func (s *Store) GetValidity(path string) domain.Validity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.validity[path]; ok {
		return v
	}
	return domain.Validity{Valid: true}
}

// Focus records the focused path.
func (s *Store) Focus(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = path
}

// Focused returns the last focused path.
func (s *Store) Focused() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}

// Navigate records a navigation.
func (s *Store) Navigate(to string, mode ports.NavigateMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, Navigation{To: to, Mode: mode})
}

// Navigations returns every recorded navigation in order.
func (s *Store) Navigations() []Navigation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Navigation(nil), s.navigations...)
}

// APICall records the request and answers it with the configured handler.
// Without a handler the response is nil.
func (s *Store) APICall(ctx context.Context, req ports.APIRequest) (any, error) {
	s.mu.Lock()
	s.apiCalls = append(s.apiCalls, req)
	handler := s.apiHandler
	s.mu.Unlock()

	if handler == nil {
		return nil, nil
	}
	return handler(ctx, req)
}

// APICalls returns every recorded request in order.
func (s *Store) APICalls() []ports.APIRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.APIRequest(nil), s.apiCalls...)
}

func clone(v any) any {
	return domain.Snapshot{Data: map[string]any{"v": v}}.Clone().Data["v"]
}

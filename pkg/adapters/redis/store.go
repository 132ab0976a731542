package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store keeps data and state leaves in two Redis hashes keyed by full semantic path.
// Writes are announced on a pub/sub channel so that several processes can share one store.
// Local writes notify local subscribers synchronously; writes made by other Store
// instances are delivered from a background goroutine.
type Store struct {
	client  *backend.Client
	prefix  string
	codec   Codec
	timeout time.Duration
	logger  *slog.Logger
	origin  string

	mu        sync.Mutex
	listeners map[int]func([]string)
	nextID    int
	pubsub    *backend.PubSub
	done      chan struct{}
}

var (
	_ ports.Store            = (*Store)(nil)
	_ ports.Subscribable     = (*Store)(nil)
	_ ports.BatchDataWriter  = (*Store)(nil)
	_ ports.BatchStateWriter = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key prefix (default "bridge:").
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithCodec sets the value encoding (default JSON).
func WithCodec(c Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithTimeout bounds every Redis round trip (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLogger sets a logger for Redis failures, which the adapter interfaces cannot return.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:    client,
		prefix:    "bridge:",
		codec:     JSON,
		timeout:   2 * time.Second,
		logger:    logging.NewNop(),
		origin:    uuid.NewString(),
		listeners: make(map[int]func([]string)),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) hashKey(ns domain.Namespace) string {
	return s.prefix + string(ns)
}

func (s *Store) channel() string {
	return s.prefix + "changes"
}

type announcement struct {
	Origin string   `json:"origin"`
	Paths  []string `json:"paths"`
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) decode(path string, raw string) any {
	var v any
	if err := s.codec.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("Failed to decode value", "path", path, "err", err)
		return nil
	}
	return v
}

func (s *Store) get(ns domain.Namespace, path string) any {
	ctx, cancel := s.ctx()
	defer cancel()

	raw, err := s.client.HGet(ctx, s.hashKey(ns), path).Result()
	if err != nil {
		if !errors.Is(err, backend.Nil) {
			s.logger.Error("Failed to read from redis", "path", path, "err", err)
		}
		return nil
	}
	return s.decode(path, raw)
}

// GetData returns the value at a data.* path.
func (s *Store) GetData(path string) any {
	return s.get(domain.NamespaceData, path)
}

// GetState returns the value at a state.* path.
func (s *Store) GetState(path string) any {
	return s.get(domain.NamespaceState, path)
}

func (s *Store) capture(ns domain.Namespace) map[string]any {
	ctx, cancel := s.ctx()
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.hashKey(ns)).Result()
	if err != nil {
		s.logger.Error("Failed to capture from redis", "namespace", ns, "err", err)
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for path, raw := range fields {
		out[path] = s.decode(path, raw)
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

// write stores leaves and announces them. Map values are expanded into their leaves.
func (s *Store) write(ns domain.Namespace, values map[string]any) {
	leaves := make(map[string]any)
	for path, v := range values {
		for leaf, lv := range paths.Flatten(v, path) {
			leaves[leaf] = lv
		}
	}
	if len(leaves) == 0 {
		return
	}

	changed := make([]string, 0, len(leaves))
	fields := make([]any, 0, 2*len(leaves))
	for path := range leaves {
		changed = append(changed, path)
	}
	sort.Strings(changed)
	for _, path := range changed {
		encoded, err := s.codec.Marshal(leaves[path])
		if err != nil {
			s.logger.Error("Failed to encode value", "path", path, "err", err)
			return
		}
		fields = append(fields, path, encoded)
	}
	msg, err := json.Marshal(announcement{Origin: s.origin, Paths: changed})
	if err != nil {
		s.logger.Error("Failed to encode announcement", "err", err)
		return
	}

	ctx, cancel := s.ctx()
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.hashKey(ns), fields...)
	pipe.Publish(ctx, s.channel(), msg)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to write to redis", "namespace", ns, "err", err)
		return
	}

	s.dispatch(changed)
}

// SetData writes a data.* path.
func (s *Store) SetData(path string, value any) {
	s.write(domain.NamespaceData, map[string]any{path: value})
}

// SetState writes a state.* path.
func (s *Store) SetState(path string, value any) {
	s.write(domain.NamespaceState, map[string]any{path: value})
}

// SetManyData writes several data.* paths in one round trip.
func (s *Store) SetManyData(values map[string]any) {
	s.write(domain.NamespaceData, values)
}

// SetManyState writes several state.* paths in one round trip.
func (s *Store) SetManyState(values map[string]any) {
	s.write(domain.NamespaceState, values)
}

// Subscribe registers a listener for changed paths.
// The first subscriber starts listening on the change channel; the last one to leave stops it.
func (s *Store) Subscribe(listener func(changed []string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	if s.pubsub == nil {
		s.listen()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			if len(s.listeners) == 0 {
				s.stop()
			}
		})
	}
}

// listen starts the pub/sub loop; callers must hold s.mu.
func (s *Store) listen() {
	ctx, cancel := s.ctx()
	defer cancel()

	pubsub := s.client.Subscribe(context.Background(), s.channel())
	// Wait for the subscription so that writes issued right after Subscribe are seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		s.logger.Error("Failed to subscribe to redis", "channel", s.channel(), "err", err)
		_ = pubsub.Close()
		return
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})
	go s.loop(pubsub.Channel(), s.done)
}

// stop ends the pub/sub loop; callers must hold s.mu.
func (s *Store) stop() {
	if s.pubsub == nil {
		return
	}
	_ = s.pubsub.Close()
	close(s.done)
	s.pubsub = nil
	s.done = nil
}

func (s *Store) loop(ch <-chan *backend.Message, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var a announcement
			if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
				s.logger.Warn("Ignoring malformed announcement", "err", err)
				continue
			}
			if a.Origin == s.origin || len(a.Paths) == 0 {
				continue
			}
			s.dispatch(a.Paths)
		}
	}
}

func (s *Store) dispatch(changed []string) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func([]string), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(changed)
	}
}

// Clear removes every stored value.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.hashKey(domain.NamespaceData), s.hashKey(domain.NamespaceState)).Err(); err != nil {
		return fmt.Errorf("failed to clear redis store: %w", err)
	}
	return nil
}

// Close stops listening and closes the redis client.
func (s *Store) Close() error {
	s.mu.Lock()
	s.stop()
	s.listeners = make(map[int]func([]string))
	s.mu.Unlock()
	return s.client.Close()
}

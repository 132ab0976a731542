// Package registry routes API calls issued through an actuator to registered handlers.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/manifesto-ai/bridge/pkg/ports"
)

// HandlerFunc answers one API call.
type HandlerFunc func(ctx context.Context, req ports.APIRequest) (any, error)

// Registry manages the available API handlers, keyed by method and URL path.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

func key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// routePath strips scheme, host and query so that "https://api/x?y=1" routes as "/x".
func routePath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

// Register adds a handler for method and path.
// If a handler for the same route exists, it is overwritten.
func (r *Registry) Register(method, path string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key(method, path)] = fn
}

// Call looks up the handler for req and executes it.
// An empty method is treated as GET. Returns an error if no handler matches.
func (r *Registry) Call(ctx context.Context, req ports.APIRequest) (any, error) {
	method := req.Method
	if method == "" {
		method = "GET"
	}
	path := routePath(req.URL)

	r.mu.RLock()
	fn, ok := r.handlers[key(method, path)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no handler for %s %s", strings.ToUpper(method), path)
	}

	return fn(ctx, req)
}

// Routes returns the registered routes as "METHOD path".
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		routes = append(routes, k)
	}
	return routes
}

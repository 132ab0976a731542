package middleware

import (
	"regexp"

	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// Mask replaces sensitive values in the underlying store.
const Mask = "***"

type piiMiddleware struct {
	base
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values whose path has a segment matching
// one of the patterns. Masking is one-way: masked paths are hidden from reads, captures and
// change notifications, so the runtime keeps the real value and never pulls the mask back.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Store) ports.Store {
		return &piiMiddleware{base: base{next}, patterns: patterns}
	}
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) masked(path string) bool {
	for _, segment := range paths.Trim(path) {
		if m.sensitive(segment) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) mask(path string, value any) any {
	if m.masked(path) {
		return Mask
	}
	if sub, ok := value.(map[string]any); ok {
		// Deep clone to avoid side effects on the value held by the runtime.
		cloned := deepCopyMap(sub)
		maskMap(cloned, m.patterns)
		return cloned
	}
	return value
}

func (m *piiMiddleware) maskAll(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for path, v := range values {
		out[path] = m.mask(path, v)
	}
	return out
}

func (m *piiMiddleware) visible(captured map[string]any) map[string]any {
	out := make(map[string]any, len(captured))
	for path, v := range captured {
		if !m.masked(path) {
			out[path] = v
		}
	}
	return out
}

func (m *piiMiddleware) GetData(path string) any {
	if m.masked(path) {
		return nil
	}
	return m.Store.GetData(path)
}

func (m *piiMiddleware) GetState(path string) any {
	if m.masked(path) {
		return nil
	}
	return m.Store.GetState(path)
}

func (m *piiMiddleware) CaptureData() map[string]any {
	return m.visible(m.Store.CaptureData())
}

func (m *piiMiddleware) CaptureState() map[string]any {
	return m.visible(m.Store.CaptureState())
}

func (m *piiMiddleware) SetData(path string, value any) {
	m.Store.SetData(path, m.mask(path, value))
}

func (m *piiMiddleware) SetState(path string, value any) {
	m.Store.SetState(path, m.mask(path, value))
}

func (m *piiMiddleware) SetManyData(values map[string]any) {
	m.setManyData(m.maskAll(values))
}

func (m *piiMiddleware) SetManyState(values map[string]any) {
	m.setManyState(m.maskAll(values))
}

func (m *piiMiddleware) Subscribe(listener func(changed []string)) func() {
	return m.base.Subscribe(func(changed []string) {
		visible := make([]string, 0, len(changed))
		for _, path := range changed {
			if !m.masked(path) {
				visible = append(visible, path)
			}
		}
		if len(visible) > 0 {
			listener(visible)
		}
	})
}

// Helpers

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		// Handle nested maps
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v // shallow copy of value
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		// Check key against patterns
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}

		// Recurse if map
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}

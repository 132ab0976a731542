package paths

import (
	"strconv"
	"strings"
)

// Parse splits a path into its segments.
// Dots separate segments; bracket notation ([0], ['key'], ["key"]) adds a segment each.
// An empty path yields an empty (non-nil) slice.
func Parse(path string) []string {
	segments := make([]string, 0, strings.Count(path, ".")+1)
	if path == "" {
		return segments
	}

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i+1:], ']')
			if end < 0 {
				// Unterminated bracket: keep the rest as a literal segment.
				current.WriteString(path[i:])
				i = len(path)
				continue
			}
			segments = append(segments, unquote(path[i+1:i+1+end]))
			i += end + 1
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return segments
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Join builds a dotted path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, ".")
}

// Namespace returns the first segment of a path ("" for an empty path).
func Namespace(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

// Trim removes the namespace segment, returning the remaining segments.
func Trim(path string) []string {
	segments := Parse(path)
	if len(segments) == 0 {
		return segments
	}
	return segments[1:]
}

// Parent splits path into the path of its container and its last segment.
// ok is false when path has fewer than two segments.
func Parent(path string) (parent, last string, ok bool) {
	cut := -1
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.':
			cut = i
		case '[':
			end := strings.IndexByte(path[i+1:], ']')
			if end < 0 {
				i = len(path)
				continue
			}
			cut = i
			i += end + 1
		}
	}
	if cut <= 0 {
		return "", "", false
	}
	tail := Parse(path[cut:])
	if len(tail) != 1 {
		return "", "", false
	}
	return path[:cut], tail[0], true
}

// MaxGrowth bounds how far past its end a single write may grow a slice.
const MaxGrowth = 1024

// Fits reports whether Set(root, segments, v) stays within MaxGrowth.
// Set never allocates past the bound, but callers use Fits to reject such writes.
func Fits(root any, segments []string) bool {
	node := root
	for _, segment := range segments {
		i, isIndex := index(segment)
		switch n := node.(type) {
		case map[string]any:
			node = n[segment]
		case []any:
			if !isIndex {
				node = nil
				continue
			}
			if i >= len(n)+MaxGrowth {
				return false
			}
			node = nil
			if i < len(n) {
				node = n[i]
			}
		default:
			if isIndex && i >= MaxGrowth {
				return false
			}
			node = nil
		}
	}
	return true
}

// index reports whether segment is a non-negative integer.
func index(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Get walks segments starting at root.
// It returns (nil, false) as soon as an intermediate is not a container or a key is missing.
// An empty segment list returns root itself.
func Get(root any, segments []string) (any, bool) {
	current := root
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			i, ok := index(segment)
			if !ok || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set assigns value at segments below root, creating intermediate containers on demand.
// A missing intermediate becomes a []any when the following segment is a non-negative
// integer and a map[string]any otherwise. An intermediate that is not a container is replaced.
// Slices grow by at most MaxGrowth elements: a farther index keys a new map instead of a new
// slice, and leaves an existing slice unchanged.
//
// Set returns the root to use afterwards: slices may be reallocated while growing, and a nil
// root is replaced by a new map. With no segments Set is a no-op and returns root unchanged.
func Set(root map[string]any, segments []string, value any) map[string]any {
	if len(segments) == 0 {
		return root
	}
	if root == nil {
		root = make(map[string]any)
	}
	root[segments[0]] = assign(root[segments[0]], segments[1:], value)
	return root
}

// assign returns node with value stored at segments below it.
func assign(node any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}

	head := segments[0]
	if i, ok := index(head); ok {
		list, isList := node.([]any)
		if !isList {
			if m, isMap := node.(map[string]any); isMap {
				m[head] = assign(m[head], segments[1:], value)
				return m
			}
			if i >= MaxGrowth {
				return map[string]any{head: assign(nil, segments[1:], value)}
			}
			list = nil
		}
		if i >= len(list) {
			if i >= len(list)+MaxGrowth {
				return list
			}
			list = append(list, make([]any, i+1-len(list))...)
		}
		list[i] = assign(list[i], segments[1:], value)
		return list
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	m[head] = assign(m[head], segments[1:], value)
	return m
}

// Flatten expands nested maps into a flat mapping keyed by dotted paths below prefix.
// Non-map values (including slices, which are atomic) are stored whole under their prefix.
// An empty map contributes nothing.
func Flatten(value any, prefix string) map[string]any {
	out := make(map[string]any)
	flatten(out, value, prefix)
	return out
}

func flatten(out map[string]any, value any, prefix string) {
	m, ok := value.(map[string]any)
	if !ok {
		out[prefix] = value
		return
	}
	for key, child := range m {
		next := key
		if prefix != "" {
			next = prefix + "." + key
		}
		flatten(out, child, next)
	}
}

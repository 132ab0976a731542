package domain

import "strings"

// Namespace is the first segment of a semantic path.
type Namespace string

const (
	// NamespaceData holds user-editable domain fields.
	NamespaceData Namespace = "data"
	// NamespaceState holds internal mutable fields.
	NamespaceState Namespace = "state"
	// NamespaceDerived holds computed, read-only values.
	NamespaceDerived Namespace = "derived"
)

// NamespaceOf returns the namespace of a semantic path.
// It is determined solely by the first segment.
func NamespaceOf(path string) Namespace {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return Namespace(path[:i])
	}
	return Namespace(path)
}

// IsExternallyOwned reports whether paths in the namespace are pulled from and pushed to external stores.
func (n Namespace) IsExternallyOwned() bool {
	return n == NamespaceData || n == NamespaceState
}

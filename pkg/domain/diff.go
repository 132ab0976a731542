package domain

import (
	"reflect"
	"sort"
)

// Diff returns the leaf paths whose values differ between two flat path→value maps.
// Added, modified and removed paths are all reported, sorted for deterministic output.
func Diff(old, new map[string]any) []string {
	var changed []string

	for path, newVal := range new {
		oldVal, exists := old[path]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			changed = append(changed, path)
		}
	}

	for path := range old {
		if _, exists := new[path]; !exists {
			changed = append(changed, path)
		}
	}

	sort.Strings(changed)
	return changed
}

package index

import "reflect"

// matchesFilters reports whether metadata satisfies every filter exactly.
// An empty or nil filter set imposes no constraint.
func matchesFilters(metadata, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

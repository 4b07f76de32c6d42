package cache

import "strings"

// Key identifies a cached response by entity and id.
type Key struct {
	// Entity is the resource collection name (e.g. "reports").
	Entity string

	// ID is the resource identifier within the collection.
	ID string
}

// Valid reports whether both parts of the key could be resolved. Requests
// with an invalid key skip caching; that is never an error.
func (k Key) Valid() bool {
	return k.Entity != "" && k.ID != ""
}

// String generates the store key.
//
// Example:
//
//	reports:550e8400-e29b-41d4-a716-446655440000
func (k Key) String() string {
	return k.Entity + ":" + k.ID
}

// EntityFromPath normalizes a route path to its entity segment: the last
// non-parameter segment, so "/api/reports" and "/reports/" both yield
// "reports". Returns "" when no segment qualifies.
func EntityFromPath(path string) string {
	cleaned := strings.Trim(path, "/")
	if cleaned == "" {
		return ""
	}
	segments := strings.Split(cleaned, "/")
	return segments[len(segments)-1]
}

package cache

import "strings"

// DefaultNamespace prefixes every key written by the store.
const DefaultNamespace = "cas:labels"

// Key identifies the label hash of one entity kind in one session.
type Key struct {
	// Namespace is the key prefix (DefaultNamespace when empty)
	Namespace string

	// Session isolates the labels of one enrichment session
	Session string

	// Kind is the entity kind, e.g. "user"
	Kind string
}

// String generates the deterministic hash key.
// Format: cas:labels:<session>:<kind>
//
// Example:
//
//	cas:labels:4b0c5c1e-6a8e-4d0f-9d8b-1f0c2a7e9b11:user
func (k Key) String() string {
	return strings.Join([]string{k.namespace(), clean(k.Session), clean(k.Kind)}, ":")
}

// ClaimKey returns the key of the set holding claimed ids.
func (k Key) ClaimKey() string {
	return k.String() + ":claimed"
}

// SessionPattern matches every key of the session (used by Reset).
func (k Key) SessionPattern() string {
	return k.namespace() + ":" + clean(k.Session) + ":*"
}

func (k Key) namespace() string {
	if k.Namespace == "" {
		return DefaultNamespace
	}
	return strings.TrimSuffix(k.Namespace, ":")
}

// clean keeps key segments free of separators and glob characters.
func clean(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(":", "_", "*", "_", "?", "_", "[", "_", "]", "_").Replace(s)
}

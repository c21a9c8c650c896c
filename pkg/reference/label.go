package reference

import "strings"

// LabelFunc derives a display label from a record. It returns "" when the
// record carries nothing usable, letting callers fall back.
type LabelFunc func(Record) string

// Lookup resolves a stringified id to a label.
type Lookup interface {
	Label(id string) (string, bool)
}

// Field returns a rule that picks the first non-blank field among names.
func Field(names ...string) LabelFunc {
	return func(r Record) string {
		for _, name := range names {
			if s, ok := r[name].(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
		return ""
	}
}

// Chain returns the first non-empty label produced by rules.
func Chain(rules ...LabelFunc) LabelFunc {
	return func(r Record) string {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if s := rule(r); s != "" {
				return s
			}
		}
		return ""
	}
}

// FullName joins first_name and last_name with a space.
func FullName(r Record) string {
	first, _ := r["first_name"].(string)
	last, _ := r["last_name"].(string)
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// DisplayLabel is the lookup-map rule: name, then full name, then email,
// then username.
var DisplayLabel = Chain(Field("name"), FullName, Field("email"), Field("username"))

// EmbeddedLabel is the rule for objects embedded in a reference field. Beyond
// DisplayLabel it honours explicit label and title fields (cases carry a title).
var EmbeddedLabel = Chain(Field("name", "label", "title"), FullName, Field("email"), Field("username"))

package reference

// Source tells where a resolved label came from.
type Source int

const (
	// SourceNone means the reference was absent.
	SourceNone Source = iota

	// SourceEmbedded means the label came from the embedded object itself.
	SourceEmbedded

	// SourceLookup means the label came from a lookup map.
	SourceLookup

	// SourceRaw means nothing resolved the id; the label is the id itself.
	SourceRaw
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceEmbedded:
		return "embedded"
	case SourceLookup:
		return "lookup"
	case SourceRaw:
		return "raw"
	default:
		return "none"
	}
}

// Resolved is the normalized form of a reference.
type Resolved struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Source Source `json:"-"`
}

// Unresolved reports whether the reference has an id whose label could not be
// found anywhere and is displayed raw.
func (r Resolved) Unresolved() bool {
	return r.Source == SourceRaw
}

// Normalizer resolves references. The zero value uses EmbeddedLabel.
type Normalizer struct {
	// Embedded derives a label from an embedded object.
	Embedded LabelFunc
}

// Default is the normalizer used by the package-level helpers.
var Default = Normalizer{Embedded: EmbeddedLabel}

// Normalize resolves v with the default normalizer.
func Normalize(v any, lookups ...Lookup) Resolved {
	return Default.Normalize(v, lookups...)
}

// NormalizeAll resolves a many-valued reference with the default normalizer.
func NormalizeAll(v any, lookups ...Lookup) []Resolved {
	return Default.NormalizeAll(v, lookups...)
}

// Normalize resolves a single reference value. It never fails: unresolvable
// ids fall back to the id itself and absent values to Placeholder.
func (n Normalizer) Normalize(v any, lookups ...Lookup) Resolved {
	embedded := n.Embedded
	if embedded == nil {
		embedded = EmbeddedLabel
	}

	var obj Record
	switch val := v.(type) {
	case map[string]any:
		obj = Record(val)
	case Record:
		obj = val
	}

	if obj != nil {
		id, _ := Stringify(obj["id"])
		if label := embedded(obj); label != "" {
			return Resolved{ID: id, Label: label, Source: SourceEmbedded}
		}
		return resolveID(id, lookups)
	}

	id, ok := Stringify(v)
	if !ok {
		return Resolved{Label: Placeholder, Source: SourceNone}
	}
	return resolveID(id, lookups)
}

// NormalizeAll resolves a reference field that may hold a list. A scalar or
// object yields one element; nil yields none.
func (n Normalizer) NormalizeAll(v any, lookups ...Lookup) []Resolved {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]Resolved, 0, len(val))
		for _, item := range val {
			out = append(out, n.Normalize(item, lookups...))
		}
		return out
	default:
		return []Resolved{n.Normalize(val, lookups...)}
	}
}

func resolveID(id string, lookups []Lookup) Resolved {
	if id == "" {
		return Resolved{Label: Placeholder, Source: SourceNone}
	}
	for _, l := range lookups {
		if l == nil {
			continue
		}
		if label, ok := l.Label(id); ok {
			return Resolved{ID: id, Label: label, Source: SourceLookup}
		}
	}
	return Resolved{ID: id, Label: id, Source: SourceRaw}
}

// Labels extracts the labels of resolved references.
func Labels(rs []Resolved) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Label
	}
	return out
}

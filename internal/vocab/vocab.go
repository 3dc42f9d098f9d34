// Package vocab holds the canonical OPGEE attribute vocabulary every source
// is harmonized into. The registry is immutable after construction and shared
// process-wide; components receive it at construction time.
package vocab

import (
	"sort"
	"strings"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
)

// MergeRule selects how a cluster collapses one attribute's member values.
type MergeRule string

const (
	// MergeFirst takes the first present value in source priority order.
	MergeFirst MergeRule = "first"
	// MergeAverage takes the arithmetic mean.
	MergeAverage MergeRule = "average"
	// MergeAverageInt takes the median truncated to an integer.
	MergeAverageInt MergeRule = "average_int"
	// MergeMedian takes the median.
	MergeMedian MergeRule = "median"
	// MergeMedianInt takes the median truncated to an integer.
	MergeMedianInt MergeRule = "median_int"
	// MergeMostFrequent takes the modal value, first seen wins ties.
	MergeMostFrequent MergeRule = "most_frequent"
	// MergeAvgAge treats member values as calendar years and yields the
	// current year minus their mean.
	MergeAvgAge MergeRule = "avg_age"
	// MergeVolumeWeighted averages weighted by the attribute named in
	// WeightAttr, falling back to the plain mean when weights are absent.
	MergeVolumeWeighted MergeRule = "volume_weighted"
)

// Attribute describes one canonical attribute: its value type, canonical
// unit, enum domain, and how the resolver treats it.
type Attribute struct {
	Name        string
	Kind        model.Kind
	Unit        string
	Enum        []string
	Required    bool
	Identity    bool
	Categorical bool
	Merge       MergeRule
	WeightAttr  string
}

// Averageable reports whether values may be combined numerically.
func (a *Attribute) Averageable() bool {
	switch a.Merge {
	case MergeAverage, MergeAverageInt, MergeMedian, MergeMedianInt, MergeAvgAge, MergeVolumeWeighted:
		return true
	}
	return false
}

// EnumValue canonicalizes a raw string against the attribute's enum domain,
// matching case-insensitively. Returns false when the attribute has an enum
// and the value is not a member.
func (a *Attribute) EnumValue(raw string) (string, bool) {
	if len(a.Enum) == 0 {
		return raw, true
	}
	for _, e := range a.Enum {
		if strings.EqualFold(e, strings.TrimSpace(raw)) {
			return e, true
		}
	}
	return "", false
}

// Registry is an indexed, immutable collection of canonical attributes.
type Registry struct {
	attrs       []Attribute
	byName      map[string]*Attribute
	identity    []string
	categorical []string
	required    []string
}

// New builds a Registry with indexed lookups.
func New(attrs []Attribute) *Registry {
	r := &Registry{
		attrs:  attrs,
		byName: make(map[string]*Attribute, len(attrs)),
	}
	for i := range r.attrs {
		a := &r.attrs[i]
		r.byName[a.Name] = a
		if a.Identity {
			r.identity = append(r.identity, a.Name)
		}
		if a.Categorical {
			r.categorical = append(r.categorical, a.Name)
		}
		if a.Required {
			r.required = append(r.required, a.Name)
		}
	}
	return r
}

// ByName returns the attribute with the given name, or nil.
func (r *Registry) ByName(name string) *Attribute {
	return r.byName[name]
}

// Has reports whether name is in the vocabulary.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns all attribute names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.attrs))
	for i := range r.attrs {
		names = append(names, r.attrs[i].Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the attribute count.
func (r *Registry) Len() int { return len(r.attrs) }

// Identity returns attribute names compared as identifying text during
// entity resolution.
func (r *Registry) Identity() []string { return r.identity }

// Categorical returns attribute names scored for categorical agreement.
func (r *Registry) Categorical() []string { return r.categorical }

// Required returns attribute names a mapped record must carry.
func (r *Registry) Required() []string { return r.required }

// WithRequired returns a copy of the registry with the given attributes
// additionally marked required. Unknown names are ignored; the receiver is
// not modified.
func (r *Registry) WithRequired(names ...string) *Registry {
	attrs := make([]Attribute, len(r.attrs))
	copy(attrs, r.attrs)
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for i := range attrs {
		if want[attrs[i].Name] {
			attrs[i].Required = true
		}
	}
	return New(attrs)
}

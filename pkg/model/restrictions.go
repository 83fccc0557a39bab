package model

// PolicyRestriction limits a policy to one index and, optionally, a subset
// of its collections.
//
//	{"index": "index-yellow-taxi", "collections": ["foo", "bar"]}
type PolicyRestriction struct {
	Index       string   `json:"index" yaml:"index"`
	Collections []string `json:"collections,omitempty" yaml:"collections,omitempty"`
}

// Restrictions is the optimized lookup form: index -> allowed collections.
// A nil map means unrestricted; an empty collection list allows the whole index.
type Restrictions map[string][]string

// NewRestrictions builds the lookup form from a list of policy restrictions.
// An empty list yields nil (unrestricted).
func NewRestrictions(list []PolicyRestriction) Restrictions {
	if len(list) == 0 {
		return nil
	}
	r := make(Restrictions, len(list))
	for _, p := range list {
		r[p.Index] = append(r[p.Index], p.Collections...)
	}
	return r
}

// Allows reports whether index/collection is visible under the restrictions.
func (r Restrictions) Allows(index, collection string) bool {
	if r == nil {
		return true
	}
	cols, ok := r[index]
	if !ok {
		return false
	}
	if len(cols) == 0 {
		return true
	}
	for _, c := range cols {
		if c == collection {
			return true
		}
	}
	return false
}

// List converts the lookup form back to policy restrictions.
func (r Restrictions) List() []PolicyRestriction {
	if r == nil {
		return nil
	}
	out := make([]PolicyRestriction, 0, len(r))
	for index, cols := range r {
		out = append(out, PolicyRestriction{Index: index, Collections: append([]string(nil), cols...)})
	}
	return out
}

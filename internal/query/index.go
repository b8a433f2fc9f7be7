package query

import (
	"strconv"
	"strings"
)

// IndexField is one key of a composite index.
type IndexField struct {
	Path  string    `bson:"path" json:"path"`
	Order Direction `bson:"order" json:"order"`
}

// IndexSpec describes a composite index on a collection. The first Equality
// fields are matched by equality and may appear in any order in an index that
// serves the read.
type IndexSpec struct {
	Collection string       `bson:"collection" json:"collection"`
	Fields     []IndexField `bson:"fields" json:"fields"`
	Equality   int          `bson:"equality,omitempty" json:"equality,omitempty"`
}

// Name follows the store's default index naming, e.g. "user_id_1_created_at_-1".
func (s IndexSpec) Name() string {
	parts := make([]string, 0, len(s.Fields)*2)
	for _, f := range s.Fields {
		parts = append(parts, f.Path, strconv.Itoa(int(f.Order)))
	}
	return strings.Join(parts, "_")
}

// Key identifies the index across collections.
func (s IndexSpec) Key() string {
	return s.Collection + "." + s.Name()
}

// CoveredBy reports whether an index with the given keys can serve s. The
// equality fields must fill the start of keys in any order and direction;
// the remaining fields must follow them in the same or fully reversed
// direction.
func (s IndexSpec) CoveredBy(keys []IndexField) bool {
	if len(s.Fields) == 0 || len(keys) < len(s.Fields) {
		return false
	}

	eq := min(max(s.Equality, 0), len(s.Fields))
	want := make(map[string]bool, eq)
	for _, f := range s.Fields[:eq] {
		want[f.Path] = true
	}
	for _, k := range keys[:eq] {
		if !want[k.Path] {
			return false
		}
		delete(want, k.Path)
	}

	same, reversed := true, true
	for i := eq; i < len(s.Fields); i++ {
		f := s.Fields[i]
		if keys[i].Path != f.Path {
			return false
		}
		if keys[i].Order != f.Order {
			same = false
		}
		if keys[i].Order != -f.Order {
			reversed = false
		}
	}
	return same || reversed
}

// RequiredIndex derives the composite index a read needs: equality fields
// first, then sort fields, then range fields. ok is false when the read
// touches a single field and any single-field index serves it.
func RequiredIndex(collection string, constraints []Constraint) (spec IndexSpec, ok bool) {
	seen := make(map[string]bool)
	add := func(path string, dir Direction) {
		if seen[path] {
			return
		}
		seen[path] = true
		spec.Fields = append(spec.Fields, IndexField{Path: path, Order: dir})
	}

	for _, c := range constraints {
		if c.IsEquality() {
			add(c.Field, Asc)
		}
	}
	spec.Equality = len(spec.Fields)
	for _, c := range constraints {
		if c.Kind == KindSort {
			dir := c.Dir
			if dir == 0 {
				dir = Asc
			}
			add(c.Field, dir)
		}
	}
	for _, c := range constraints {
		if c.IsRange() {
			add(c.Field, Asc)
		}
	}

	spec.Collection = collection
	return spec, len(spec.Fields) > 1
}

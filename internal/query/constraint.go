// Package query runs filtered, sorted reads against the document store and
// degrades to a simpler read when the store cannot serve them yet.
package query

import (
	"fmt"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Direction is a sort or index key direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// Kind distinguishes the clauses a read is built from.
type Kind int

const (
	KindFilter Kind = iota
	KindSort
	KindLimit
)

// Constraint is one clause of a read. Build them with Where, OrderBy and Limit.
type Constraint struct {
	Kind  Kind
	Field string
	Op    Op
	Value any
	Dir   Direction
	N     int64
}

func Where(field string, op Op, value any) Constraint {
	return Constraint{Kind: KindFilter, Field: field, Op: op, Value: value}
}

func OrderBy(field string, dir Direction) Constraint {
	return Constraint{Kind: KindSort, Field: field, Dir: dir}
}

func Limit(n int64) Constraint {
	return Constraint{Kind: KindLimit, N: n}
}

// IsEquality reports whether c is an equality filter.
func (c Constraint) IsEquality() bool {
	return c.Kind == KindFilter && c.Op == OpEq
}

// IsRange reports whether c is an inequality filter.
func (c Constraint) IsRange() bool {
	return c.Kind == KindFilter && c.Op != OpEq
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindSort:
		if c.Dir == Desc {
			return "orderBy(" + c.Field + " desc)"
		}
		return "orderBy(" + c.Field + " asc)"
	case KindLimit:
		return fmt.Sprintf("limit(%d)", c.N)
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
}

// Describe renders a constraint list for logs.
func Describe(constraints []Constraint) string {
	parts := make([]string, len(constraints))
	for i, c := range constraints {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

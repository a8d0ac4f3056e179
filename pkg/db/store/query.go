package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Operator string

const (
	OpEqual            Operator = "=="
	OpIn               Operator = "in"
	OpArrayContainsAny Operator = "array-contains-any"
	OpGreaterOrEqual   Operator = ">="
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Constraint is one element of a conjunctive query.
type Constraint interface {
	constraint()
}

type Where struct {
	Field string
	Op    Operator
	Value any
}

type OrderBy struct {
	Field     string
	Direction Direction
}

type Limit struct {
	N int
}

// StartAfter resumes a query after the position encoded in Cursor.
type StartAfter struct {
	Cursor string
}

func (Where) constraint()      {}
func (OrderBy) constraint()    {}
func (Limit) constraint()      {}
func (StartAfter) constraint() {}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

type cursor struct {
	Value any    `json:"v,omitempty"`
	Path  string `json:"p"`
}

type queryPlan struct {
	filters []Where
	order   *OrderBy
	limit   int
	after   *cursor
}

func compile(constraints []Constraint) (*queryPlan, error) {
	plan := &queryPlan{}

	for _, c := range constraints {
		switch v := c.(type) {
		case Where:
			if !fieldPattern.MatchString(v.Field) {
				return nil, fmt.Errorf("%w: field %q", ErrInvalidQuery, v.Field)
			}
			value, err := normalizeValue(v.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: value of %q: %v", ErrInvalidQuery, v.Field, err)
			}
			switch v.Op {
			case OpEqual, OpGreaterOrEqual:
			case OpIn, OpArrayContainsAny:
				if _, ok := value.([]any); !ok {
					return nil, fmt.Errorf("%w: %s on %q needs a list", ErrInvalidQuery, v.Op, v.Field)
				}
			default:
				return nil, fmt.Errorf("%w: operator %q", ErrInvalidQuery, v.Op)
			}
			plan.filters = append(plan.filters, Where{Field: v.Field, Op: v.Op, Value: value})
		case OrderBy:
			if plan.order != nil {
				return nil, fmt.Errorf("%w: more than one order", ErrInvalidQuery)
			}
			if !fieldPattern.MatchString(v.Field) {
				return nil, fmt.Errorf("%w: order field %q", ErrInvalidQuery, v.Field)
			}
			if v.Direction != Descending {
				v.Direction = Ascending
			}
			order := v
			plan.order = &order
		case Limit:
			if v.N < 0 {
				return nil, fmt.Errorf("%w: negative limit", ErrInvalidQuery)
			}
			plan.limit = v.N
		case StartAfter:
			if v.Cursor == "" {
				continue
			}
			cur, err := decodeCursor(v.Cursor)
			if err != nil {
				return nil, err
			}
			plan.after = cur
		}
	}

	return plan, nil
}

func (p *queryPlan) cursorFor(doc *Document) string {
	if doc == nil {
		return ""
	}
	cur := cursor{Path: doc.Path}
	if p.order != nil {
		cur.Value = lookup(doc.Fields, p.order.Field)
	}
	raw, _ := json.Marshal(cur)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (*cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	var cur cursor
	if err := json.Unmarshal(raw, &cur); err != nil || cur.Path == "" {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	return &cur, nil
}

// lookup resolves a dotted field name inside fields.
func lookup(fields Fields, field string) any {
	var current any = map[string]any(fields)
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// compareValues orders two normalized values. Numbers, strings and booleans
// are comparable with their own kind; anything else is reported as not comparable.
func compareValues(a, b any) (int, bool) {
	if fa, ok := Number(a); ok {
		fb, ok := Number(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(va, vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

func (w Where) matches(fields Fields) bool {
	actual := lookup(fields, w.Field)

	switch w.Op {
	case OpEqual:
		return valuesEqual(actual, w.Value)
	case OpGreaterOrEqual:
		c, ok := compareValues(actual, w.Value)
		return ok && c >= 0
	case OpIn:
		for _, candidate := range w.Value.([]any) {
			if valuesEqual(actual, candidate) {
				return true
			}
		}
	case OpArrayContainsAny:
		elements, ok := actual.([]any)
		if !ok {
			return false
		}
		for _, element := range elements {
			for _, candidate := range w.Value.([]any) {
				if valuesEqual(element, candidate) {
					return true
				}
			}
		}
	}
	return false
}

package streamquery

import (
	"fmt"
	"strings"
)

// ValidationError lists every structural problem found in a query.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid stream query: " + strings.Join(e.Problems, "; ")
}

// Validate checks the query for structural problems that no backend can
// compile: empty ids, the wildcard outside Any, and empty nested queries.
//
// Store homogeneity is not checked here; the router owns that rule.
func Validate(q StreamQuery) error {
	v := &validator{}
	v.validateQuery(q, "streams")
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q StreamQuery, path string) {
	for i, b := range q {
		v.validateBlock(b, fmt.Sprintf("%s[%d]", path, i))
	}
}

func (v *validator) validateBlock(b Block, path string) {
	if b.IsLegacy() {
		return
	}
	for i, id := range b.Any {
		if id == "" {
			v.add("%s.any[%d]: empty stream id", path, i)
		}
	}
	for i, id := range b.Not {
		if id == "" {
			v.add("%s.not[%d]: empty stream id", path, i)
		}
		if id == Wildcard {
			v.add("%s.not[%d]: wildcard cannot be excluded", path, i)
		}
	}
	for i, nested := range b.And {
		nestedPath := fmt.Sprintf("%s.and[%d]", path, i)
		if len(nested) == 0 {
			v.add("%s: empty query", nestedPath)
			continue
		}
		v.validateQuery(nested, nestedPath)
	}
}

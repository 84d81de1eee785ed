// Package querytext compiles stream queries to a textual boolean expression
// over quoted stream ids, the form full-text indexes match against a record's
// stream-id tag list:
//
//	[{any:["A","B"], not:["C"]}]  →  ("A" OR "B") NOT "C"
//
// Every stored record carries AllEventsTag in its tag list, so "no
// constraint" is the positive term `".."` rather than an empty string, and
// NOT always has a left operand.
//
// Operator precedence follows FTS5: NOT binds tighter than AND, AND tighter
// than OR. OR groups are always parenthesized.
package querytext

import (
	"strings"

	"github.com/roach88/streamhub/internal/streamquery"
)

// AllEventsTag is appended to every stored record's stream ids.
const AllEventsTag = ".."

// Compile converts a stream query to a boolean expression.
//
// An empty query compiles to the empty string: callers must skip the stream
// condition entirely. A single block compiles unwrapped; several blocks are
// parenthesized and joined with OR.
func Compile(q streamquery.StreamQuery) string {
	switch len(q) {
	case 0:
		return ""
	case 1:
		return CompileBlock(q[0])
	}
	parts := make([]string, len(q))
	for i, b := range q {
		parts[i] = CompileBlock(b)
	}
	return "(" + strings.Join(parts, ") OR (") + ")"
}

// CompileBlock converts one AND-block.
//
// Layout: <any-term> [AND <nested>]... [NOT <id>]...
func CompileBlock(b streamquery.Block) string {
	if b.IsLegacy() {
		return Quote(b.Legacy)
	}

	var sb strings.Builder
	sb.WriteString(anyTerm(b))

	for _, nested := range b.And {
		if len(nested) == 0 {
			continue
		}
		sb.WriteString(" AND ")
		sb.WriteString(compileNested(nested))
	}

	for _, id := range b.Not {
		sb.WriteString(" NOT ")
		sb.WriteString(Quote(id))
	}

	return sb.String()
}

// anyTerm renders the OR-set of a block. Empty or wildcard sets match every
// record.
func anyTerm(b streamquery.Block) string {
	if b.Unconstrained() {
		return Quote(AllEventsTag)
	}
	if len(b.Any) == 1 {
		return Quote(b.Any[0])
	}
	quoted := make([]string, len(b.Any))
	for i, id := range b.Any {
		quoted[i] = Quote(id)
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

// compileNested renders a nested query as a single operand of AND. Anything
// longer than one term is parenthesized.
func compileNested(q streamquery.StreamQuery) string {
	if len(q) == 1 {
		b := q[0]
		text := CompileBlock(b)
		if len(b.Not) == 0 && len(b.And) == 0 {
			return text
		}
		return "(" + text + ")"
	}
	return "(" + Compile(q) + ")"
}

// Quote renders an id as a quoted string term. Embedded quotes are doubled.
func Quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

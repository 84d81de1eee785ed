package querytext

import (
	"fmt"
	"strings"
)

// Expr is a parsed boolean expression ready to be matched against tag sets.
// An Expr is immutable and safe for concurrent use.
type Expr struct {
	root node
}

// node is one operator or term of a parsed expression.
type node interface {
	eval(tags map[string]struct{}) bool
}

type termNode struct{ id string }

type orNode struct{ operands []node }

type andNode struct{ operands []node }

// notNode is the binary FTS operator: left AND NOT right.
type notNode struct{ left, right node }

type trueNode struct{}

func (n termNode) eval(tags map[string]struct{}) bool {
	_, ok := tags[n.id]
	return ok
}

func (n orNode) eval(tags map[string]struct{}) bool {
	for _, o := range n.operands {
		if o.eval(tags) {
			return true
		}
	}
	return false
}

func (n andNode) eval(tags map[string]struct{}) bool {
	for _, o := range n.operands {
		if !o.eval(tags) {
			return false
		}
	}
	return true
}

func (n notNode) eval(tags map[string]struct{}) bool {
	return n.left.eval(tags) && !n.right.eval(tags)
}

func (trueNode) eval(map[string]struct{}) bool { return true }

// Match reports whether a record carrying tags satisfies the expression.
func (e *Expr) Match(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return e.root.eval(set)
}

// Eval parses expr and matches it against tags in one step.
func Eval(expr string, tags []string) (bool, error) {
	e, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return e.Match(tags), nil
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("boolean expression syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Parse parses an expression produced by Compile. The empty expression
// matches everything.
//
// Grammar:
//
//	or   := and ("OR" and)*
//	and  := not ("AND" not)*
//	not  := atom ("NOT" atom)*
//	atom := STRING | "(" or ")"
func Parse(expr string) (*Expr, error) {
	if strings.TrimSpace(expr) == "" {
		return &Expr{root: trueNode{}}, nil
	}
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %s", p.peek().describe())
	}
	return &Expr{root: root}, nil
}

type tokenKind int

const (
	tokString tokenKind = iota + 1
	tokOpen
	tokClose
	tokOr
	tokAnd
	tokNot
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) describe() string {
	switch t.kind {
	case tokString:
		return fmt.Sprintf("term %q", t.text)
	case tokOpen:
		return `"("`
	case tokClose:
		return `")"`
	default:
		return t.text
	}
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, offset: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, offset: i})
			i++
		case c == '"':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(expr) {
				if expr[i] == '"' {
					if i+1 < len(expr) && expr[i+1] == '"' {
						sb.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(expr[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Expr: expr, Offset: start, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), offset: start})
		default:
			start := i
			for i < len(expr) && !isSpace(expr[i]) && expr[i] != '(' && expr[i] != ')' && expr[i] != '"' {
				i++
			}
			word := expr[start:i]
			switch word {
			case "OR":
				toks = append(toks, token{kind: tokOr, text: word, offset: start})
			case "AND":
				toks = append(toks, token{kind: tokAnd, text: word, offset: start})
			case "NOT":
				toks = append(toks, token{kind: tokNot, text: word, offset: start})
			default:
				return nil, &SyntaxError{Expr: expr, Offset: start, Msg: fmt.Sprintf("unknown operator %q", word)}
			}
		}
	}
	return toks, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

type parser struct {
	expr string
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) accept(kind tokenKind) bool {
	if !p.done() && p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	offset := len(p.expr)
	if !p.done() {
		offset = p.peek().offset
	}
	return &SyntaxError{Expr: p.expr, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for p.accept(tokOr) {
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return orNode{operands: operands}, nil
}

func (p *parser) parseAnd() (node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for p.accept(tokAnd) {
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return andNode{operands: operands}, nil
}

func (p *parser) parseNot() (node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.accept(tokNot) {
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = notNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAtom() (node, error) {
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	tok := p.peek()
	switch tok.kind {
	case tokString:
		p.pos++
		return termNode{id: tok.text}, nil
	case tokOpen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokClose) {
			return nil, p.errorf(`expected ")"`)
		}
		return inner, nil
	default:
		return nil, p.errorf("unexpected %s", tok.describe())
	}
}

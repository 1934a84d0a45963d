package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/pipeflow/errors"
)

// Resolver looks up a dotted identifier. The second result is false when the
// path does not resolve to a value.
type Resolver interface {
	Lookup(path []string) (any, bool)
}

// MapResolver resolves paths against nested maps.
type MapResolver map[string]any

// Lookup implements Resolver.
func (m MapResolver) Lookup(path []string) (any, bool) {
	return Walk(map[string]any(m), path)
}

// Walk follows path through nested maps and slices (numeric segments index
// slices).
func Walk(v any, path []string) (any, bool) {
	cur := v
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Expression is a compiled condition expression.
type Expression struct {
	src  string
	root node
}

// Compile parses src. Syntax errors are invalid-format errors so callers can
// reject a definition before it runs.
func Compile(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.InvalidFormat("expression", "a non-empty expression")
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, syntaxError(src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, syntaxError(src, err)
	}
	if p.pos < len(p.tokens) {
		return nil, syntaxError(src, fmt.Errorf("unexpected %q at offset %d", p.tokens[p.pos].text, p.tokens[p.pos].start))
	}
	return &Expression{src: src, root: root}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func syntaxError(src string, err error) error {
	return errors.InvalidFormat("expression", "valid syntax").
		WithDetail("expression", src).
		WithCause(err)
}

// String returns the source text.
func (e *Expression) String() string { return e.src }

// Eval evaluates the expression. Unresolved identifiers evaluate to an absent
// value rather than an error.
func (e *Expression) Eval(r Resolver) any {
	v := e.root.eval(r)
	if v.absent {
		return nil
	}
	return v.val
}

// EvalBool evaluates the expression and reports its truthiness.
func (e *Expression) EvalBool(r Resolver) bool {
	return truthy(e.root.eval(r))
}

// Identifiers returns the dotted identifiers referenced by the expression.
func (e *Expression) Identifiers() []string {
	var out []string
	e.root.walk(func(n node) {
		if id, ok := n.(identNode); ok {
			out = append(out, strings.Join(id.path, "."))
		}
	})
	return out
}

// Eval compiles and evaluates src in one call.
func Eval(src string, r Resolver) (bool, error) {
	e, err := Compile(src)
	if err != nil {
		return false, err
	}
	return e.EvalBool(r), nil
}

package expr

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// value carries an evaluated operand. absent marks identifiers that did not
// resolve, which differ from an explicit null only for ordering.
type value struct {
	val    any
	absent bool
}

type node interface {
	eval(r Resolver) value
	walk(fn func(node))
}

type literalNode struct{ v value }

func (n literalNode) eval(Resolver) value  { return n.v }
func (n literalNode) walk(fn func(node)) { fn(n) }

type identNode struct{ path []string }

func (n identNode) eval(r Resolver) value {
	if r == nil {
		return value{absent: true}
	}
	v, ok := r.Lookup(n.path)
	if !ok {
		return value{absent: true}
	}
	return value{val: v}
}

func (n identNode) walk(fn func(node)) { fn(n) }

type notNode struct{ operand node }

func (n notNode) eval(r Resolver) value { return value{val: !truthy(n.operand.eval(r))} }
func (n notNode) walk(fn func(node)) {
	fn(n)
	n.operand.walk(fn)
}

type logicalNode struct {
	op          string
	left, right node
}

func (n logicalNode) eval(r Resolver) value {
	l := truthy(n.left.eval(r))
	if n.op == "&&" {
		if !l {
			return value{val: false}
		}
		return value{val: truthy(n.right.eval(r))}
	}
	if l {
		return value{val: true}
	}
	return value{val: truthy(n.right.eval(r))}
}

func (n logicalNode) walk(fn func(node)) {
	fn(n)
	n.left.walk(fn)
	n.right.walk(fn)
}

type compareNode struct {
	op          string
	left, right node
}

func (n compareNode) walk(fn func(node)) {
	fn(n)
	n.left.walk(fn)
	n.right.walk(fn)
}

func (n compareNode) eval(r Resolver) value {
	l, rv := n.left.eval(r), n.right.eval(r)
	switch n.op {
	case "==":
		return value{val: equal(l, rv)}
	case "!=":
		return value{val: !equal(l, rv)}
	}
	if l.absent || rv.absent || l.val == nil || rv.val == nil {
		return value{val: false}
	}
	if lf, ok := number(l.val); ok {
		if rf, ok := number(rv.val); ok {
			return value{val: ordered(n.op, compareFloat(lf, rf))}
		}
	}
	ls, lok := l.val.(string)
	rs, rok := rv.val.(string)
	if lok && rok {
		return value{val: ordered(n.op, compareString(ls, rs))}
	}
	return value{val: false}
}

func ordered(op string, cmp int) bool {
	switch op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func equal(a, b value) bool {
	if a.absent || a.val == nil {
		return b.absent || b.val == nil
	}
	if b.absent || b.val == nil {
		return false
	}
	if af, ok := number(a.val); ok {
		bf, ok := number(b.val)
		return ok && af == bf
	}
	switch av := a.val.(type) {
	case string:
		bv, ok := b.val.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.val.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a.val, b.val)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func truthy(v value) bool {
	if v.absent || v.val == nil {
		return false
	}
	switch t := v.val.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	if f, ok := number(v.val); ok {
		return f != 0
	}
	return fmt.Sprint(v.val) != ""
}

package step

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/expr"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
)

// Encodings understood by format and parse.
const (
	EncodingJSON = "json"
	EncodingYAML = "yaml"
)

// TransformHandler runs transform steps. Transforms are pure: every failure
// is a data or config error and none is retried.
type TransformHandler struct{}

// NewTransformHandler creates a TransformHandler.
func NewTransformHandler() *TransformHandler { return &TransformHandler{} }

func (h *TransformHandler) Type() pipeline.StepType { return pipeline.TypeTransform }

// Check compiles filter expressions and parses templates.
func (h *TransformHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.TransformConfig](def)
	if err != nil {
		return err
	}
	switch cfg.Operation {
	case pipeline.TransformFilter:
		if _, err := expr.Compile(cfg.Where); err != nil {
			return definitionError(def, err)
		}
	case pipeline.TransformFormat:
		if err := state.Check("template", cfg.Template); err != nil {
			return definitionError(def, err)
		}
	case pipeline.TransformLiteral:
		if err := checkValue("value", cfg.Value); err != nil {
			return definitionError(def, err)
		}
	}
	return nil
}

// Execute applies the operation.
func (h *TransformHandler) Execute(_ context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.TransformConfig](req.Step)
	if err != nil {
		return nil, err
	}

	var out any
	switch cfg.Operation {
	case pipeline.TransformPick:
		out, err = pick(req.Scope, cfg)
	case pipeline.TransformMap:
		out, err = remap(req.Scope, cfg)
	case pipeline.TransformFilter:
		out, err = filter(req.Scope, cfg)
	case pipeline.TransformMerge:
		out, err = merge(req.Scope, cfg)
	case pipeline.TransformFormat:
		out, err = format(req.Scope, cfg)
	case pipeline.TransformParse:
		out, err = parse(req.Scope, cfg)
	case pipeline.TransformLiteral:
		out, err = req.Scope.RenderValue("value", cfg.Value)
	default:
		err = errors.InvalidInput("operation", fmt.Sprintf("unknown transform %q", cfg.Operation))
	}
	if err != nil {
		return nil, err
	}
	return &Result{Output: out}, nil
}

func source(scope *state.Scope, path string) (any, error) {
	v, ok := scope.Resolve(path)
	if !ok {
		return nil, errors.InvalidInput("source", fmt.Sprintf("%q does not resolve to a value", path)).
			WithDetail("source", path)
	}
	return v, nil
}

func sourceMap(scope *state.Scope, path string) (map[string]any, error) {
	v, err := source(scope, path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.InvalidInput("source", fmt.Sprintf("%q is %s, not an object", path, typeName(v))).
			WithDetail("source", path)
	}
	return m, nil
}

// pick keeps the listed fields. Dotted fields select nested values and keep
// the full path as the key; missing fields are left out.
func pick(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	src, err := sourceMap(scope, cfg.Source)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if v, ok := expr.Walk(src, strings.Split(f, ".")); ok {
			out[f] = v
		}
	}
	return out, nil
}

// remap builds an object whose keys are the mapping keys. Each path is read
// from the source first, then from the whole scope; unresolved paths map to
// null.
func remap(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	src, err := sourceMap(scope, cfg.Source)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cfg.Mapping))
	for key, path := range cfg.Mapping {
		if v, ok := expr.Walk(src, strings.Split(path, ".")); ok {
			out[key] = v
			continue
		}
		v, _ := scope.Resolve(path)
		out[key] = v
	}
	return out, nil
}

// filter keeps the items of a list for which Where holds. Inside Where, item
// names the element and bare names resolve against object elements before
// the scope.
func filter(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	v, err := source(scope, cfg.Source)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.InvalidInput("source", fmt.Sprintf("%q is %s, not a list", cfg.Source, typeName(v))).
			WithDetail("source", cfg.Source)
	}
	where, err := expr.Compile(cfg.Where)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if where.EvalBool(itemResolver{item: item, scope: scope}) {
			out = append(out, item)
		}
	}
	return out, nil
}

type itemResolver struct {
	item  any
	scope *state.Scope
}

func (r itemResolver) Lookup(path []string) (any, bool) {
	if len(path) > 0 && path[0] == "item" {
		return expr.Walk(r.item, path[1:])
	}
	if m, ok := r.item.(map[string]any); ok && len(path) > 0 {
		if _, has := m[path[0]]; has {
			return expr.Walk(m, path)
		}
	}
	return r.scope.Lookup(path)
}

// merge shallow-merges objects in order; later keys win. Without Sources it
// merges the direct dependencies in dependency order.
func merge(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	sources := cfg.Sources
	if len(sources) == 0 {
		for _, dep := range scope.Deps() {
			sources = append(sources, state.RootSteps+"."+dep)
		}
	}
	out := make(map[string]any)
	for _, path := range sources {
		v, ok := scope.Resolve(path)
		if !ok || v == nil {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errors.InvalidInput("sources", fmt.Sprintf("%q is %s, not an object", path, typeName(v))).
				WithDetail("source", path)
		}
		for k, e := range m {
			out[k] = e
		}
	}
	return out, nil
}

// format renders Template, or encodes the source when no template is set.
func format(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	if cfg.Template != "" {
		return scope.Render("template", cfg.Template)
	}
	v, err := source(scope, cfg.Source)
	if err != nil {
		return nil, err
	}
	switch cfg.Encoding {
	case EncodingYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, errors.InvalidFormat("source", "a YAML-encodable value").WithCause(err)
		}
		return string(b), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.InvalidFormat("source", "a JSON-encodable value").WithCause(err)
		}
		return string(b), nil
	}
}

// parse decodes a string source.
func parse(scope *state.Scope, cfg *pipeline.TransformConfig) (any, error) {
	v, err := source(scope, cfg.Source)
	if err != nil {
		return nil, err
	}
	text, ok := v.(string)
	if !ok {
		return nil, errors.InvalidInput("source", fmt.Sprintf("%q is %s, not a string", cfg.Source, typeName(v))).
			WithDetail("source", cfg.Source)
	}
	var out any
	switch cfg.Encoding {
	case EncodingYAML:
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			return nil, errors.InvalidFormat("source", "YAML").WithCause(err)
		}
	default:
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, errors.InvalidFormat("source", "JSON").WithCause(err)
		}
	}
	normalized, err := state.Normalize(out)
	if err != nil {
		return nil, errors.InvalidFormat("source", "a JSON-compatible document").WithCause(err)
	}
	return normalized, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "a list"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	}
	return fmt.Sprintf("%T", v)
}

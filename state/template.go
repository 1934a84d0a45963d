package state

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipeflow/errors"
)

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"yaml": func(v any) (string, error) {
		b, err := yaml.Marshal(v)
		return strings.TrimRight(string(b), "\n"), err
	},
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, it := range items {
			b, _ := json.Marshal(it)
			if s, ok := it.(string); ok {
				parts[i] = s
			} else {
				parts[i] = string(b)
			}
		}
		return strings.Join(parts, sep)
	},
}

// Render executes text as a Go template over the scope's Data. Missing keys
// render as the empty string. Text without template actions is returned as is.
func (s *Scope) Render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Funcs(funcs).Parse(text)
	if err != nil {
		return "", errors.InvalidFormat(name, "a valid template").WithCause(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s.Data()); err != nil {
		return "", errors.Validation("rendering "+name+" failed").WithCause(err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// RenderValue renders every string inside v, recursing through maps and
// slices. Map keys are left untouched.
func (s *Scope) RenderValue(name string, v any) (any, error) {
	switch t := v.(type) {
	case string:
		return s.Render(name, t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := s.RenderValue(name+"."+k, e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := s.RenderValue(name, e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

// Check parses text as a template without executing it.
func Check(name, text string) error {
	if !strings.Contains(text, "{{") {
		return nil
	}
	if _, err := template.New(name).Funcs(funcs).Parse(text); err != nil {
		return errors.InvalidFormat(name, "a valid template").WithCause(err)
	}
	return nil
}

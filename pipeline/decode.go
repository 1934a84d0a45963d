package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipeflow/errors"
)

var stepKeys = map[string]bool{
	"id": true, "name": true, "type": true, "depends_on": true, "config": true,
	"timeout": true, "retry": true, "enabled": true, "is_enabled": true, "best_effort": true,
}

type rawStep struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	Type       StepType     `yaml:"type"`
	DependsOn  []string     `yaml:"depends_on"`
	Config     yaml.Node    `yaml:"config"`
	Timeout    Duration     `yaml:"timeout"`
	Retry      *RetryPolicy `yaml:"retry"`
	Enabled    *bool        `yaml:"enabled"`
	IsEnabled  *bool        `yaml:"is_enabled"`
	BestEffort bool         `yaml:"best_effort"`
}

// UnmarshalYAML decodes a step and its typed config strictly.
func (s *StepDefinition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Definition(fmt.Sprintf("line %d: step must be a mapping", node.Line))
	}
	var raw rawStep
	if err := node.Decode(&raw); err != nil {
		return errors.Definition(fmt.Sprintf("line %d: invalid step", node.Line)).WithCause(err)
	}
	label := raw.ID
	if label == "" {
		label = fmt.Sprintf("line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !stepKeys[key] {
			return stepError(label, fmt.Sprintf("unknown field %q", key))
		}
	}
	if !raw.Type.Valid() {
		return stepError(label, fmt.Sprintf("unknown step type %q", raw.Type))
	}

	cfg, err := decodeConfig(raw.Type, &raw.Config)
	if err != nil {
		return stepError(label, "malformed config").WithCause(err)
	}

	enabled := raw.Enabled
	if enabled == nil {
		enabled = raw.IsEnabled
	}
	*s = StepDefinition{
		ID:         raw.ID,
		Name:       raw.Name,
		Type:       raw.Type,
		DependsOn:  raw.DependsOn,
		Config:     cfg,
		Timeout:    raw.Timeout,
		Retry:      raw.Retry,
		Enabled:    enabled,
		BestEffort: raw.BestEffort,
	}
	return nil
}

// UnmarshalJSON routes JSON through the YAML decoder, which accepts JSON input.
func (s *StepDefinition) UnmarshalJSON(b []byte) error {
	return yaml.Unmarshal(b, s)
}

func decodeConfig(t StepType, node *yaml.Node) (StepConfig, error) {
	cfg := newConfig(t)
	if node.Kind == 0 {
		return cfg, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config must be a mapping")
	}
	buf, err := yaml.Marshal(node)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if h, ok := cfg.(*HTTPConfig); ok {
		h.Method = strings.ToUpper(h.Method)
	}
	return cfg, nil
}

func stepError(stepID, msg string) *errors.AppError {
	return errors.Definition(fmt.Sprintf("step %s: %s", stepID, msg)).WithDetail("step_id", stepID)
}

// Parse decodes a pipeline definition from YAML or JSON.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.Definition("invalid pipeline definition").WithCause(err)
	}
	if len(p.Steps) == 0 && p.ID == "" {
		return nil, errors.Definition("empty pipeline definition")
	}
	return &p, nil
}

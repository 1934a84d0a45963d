package pipeline

// StepType identifies the handler that runs a step.
type StepType string

const (
	TypeLLMPrompt StepType = "llm_prompt"
	TypeCode      StepType = "code"
	TypeFile      StepType = "file"
	TypeHTTPAPI   StepType = "http_api"
	TypeCondition StepType = "condition"
	TypeTransform StepType = "transform"
)

// StepTypes lists every known step type.
var StepTypes = []StepType{TypeLLMPrompt, TypeCode, TypeFile, TypeHTTPAPI, TypeCondition, TypeTransform}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	for _, known := range StepTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Pure reports whether steps of this type perform no external I/O and are
// therefore never retried.
func (t StepType) Pure() bool {
	return t == TypeCondition || t == TypeTransform
}

// Pipeline is an immutable workflow definition. A new version is a new Pipeline.
type Pipeline struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Owner       string           `yaml:"owner,omitempty" json:"owner,omitempty"`
	Version     int              `yaml:"version,omitempty" json:"version,omitempty"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepDefinition `yaml:"steps" json:"steps"`
}

// Step returns the definition with the given id.
func (p *Pipeline) Step(id string) (*StepDefinition, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Ref returns "id@version", the key a Store resolves exact versions by.
func (p *Pipeline) Ref() string {
	return RefOf(p.ID, p.Version)
}

// StepDefinition is one unit of work within a pipeline.
type StepDefinition struct {
	ID   string   `yaml:"id" json:"id"`
	Name string   `yaml:"name,omitempty" json:"name,omitempty"`
	Type StepType `yaml:"type" json:"type"`
	// DependsOn lists the steps that must be terminal first. Nil selects the
	// sequential default (the preceding enabled step); an empty, non-nil list
	// marks a root step.
	DependsOn  []string     `yaml:"depends_on" json:"depends_on"`
	Config     StepConfig   `yaml:"config" json:"config"`
	Timeout    Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry      *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`
	Enabled    *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	BestEffort bool         `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`
}

// IsEnabled reports whether the step runs. Steps are enabled unless disabled explicitly.
func (s *StepDefinition) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// RetryPolicy overrides the engine's default retry settings for one step.
// Unset fields fall back to the engine defaults.
type RetryPolicy struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty" validate:"gte=0"`
	BaseDelay   Duration `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	MaxDelay    Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	Exponential *bool    `yaml:"exponential,omitempty" json:"exponential,omitempty"`
}

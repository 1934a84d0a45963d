package pipeline

// StepConfig is the typed config payload of a step. Each step type has
// exactly one implementation.
type StepConfig interface {
	StepType() StepType
}

// LLMPromptConfig sends a templated prompt to the LLM collaborator.
type LLMPromptConfig struct {
	Prompt       string   `yaml:"prompt" json:"prompt" validate:"required"`
	SystemPrompt string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Model        string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" validate:"gte=0"`
	// ResponseFormat "json" asks for a JSON reply and decodes it into the
	// step output under "json".
	ResponseFormat string `yaml:"response_format,omitempty" json:"response_format,omitempty" validate:"omitempty,oneof=text json"`
}

// CodeConfig runs source code in the sandbox collaborator.
type CodeConfig struct {
	Language      string            `yaml:"language" json:"language" validate:"required"`
	Source        string            `yaml:"source" json:"source" validate:"required"`
	MemoryLimitMB int               `yaml:"memory_limit_mb,omitempty" json:"memory_limit_mb,omitempty" validate:"gte=0"`
	Args          []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env           map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// File operations.
const (
	FileRead   = "read"
	FileWrite  = "write"
	FileAppend = "append"
	FileDelete = "delete"
	FileList   = "list"
)

// FileConfig performs one operation against the file store, confined to the
// execution's path scope. Scope may narrow the configured scope mode but
// never widen it.
type FileConfig struct {
	Operation string `yaml:"operation" json:"operation" validate:"required,oneof=read write append delete list"`
	Path      string `yaml:"path" json:"path" validate:"required_unless=Operation list"`
	Content   string `yaml:"content,omitempty" json:"content,omitempty"`
	Scope     string `yaml:"scope,omitempty" json:"scope,omitempty" validate:"omitempty,oneof=execution pipeline shared"`
}

// HTTPConfig issues one HTTP request.
type HTTPConfig struct {
	Method  string            `yaml:"method" json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL     string            `yaml:"url" json:"url" validate:"required"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Body    any               `yaml:"body,omitempty" json:"body,omitempty"`
	Auth    *HTTPAuth         `yaml:"auth,omitempty" json:"auth,omitempty" validate:"omitempty"`
}

// HTTPAuth configures request authentication.
type HTTPAuth struct {
	Type     string `yaml:"type" json:"type" validate:"required,oneof=bearer basic api_key"`
	Token    string `yaml:"token,omitempty" json:"token,omitempty" validate:"required_unless=Type basic"`
	Username string `yaml:"username,omitempty" json:"username,omitempty" validate:"required_if=Type basic"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	Header   string `yaml:"header,omitempty" json:"header,omitempty"`
}

// ConditionConfig evaluates Expression and prunes the branch not taken.
type ConditionConfig struct {
	Expression string   `yaml:"expression" json:"expression" validate:"required"`
	OnTrue     []string `yaml:"on_true,omitempty" json:"on_true,omitempty"`
	OnFalse    []string `yaml:"on_false,omitempty" json:"on_false,omitempty"`
}

// Targets returns every step named by either branch.
func (c *ConditionConfig) Targets() []string {
	out := make([]string, 0, len(c.OnTrue)+len(c.OnFalse))
	out = append(out, c.OnTrue...)
	return append(out, c.OnFalse...)
}

// Transform operations.
const (
	TransformPick    = "pick"
	TransformMap     = "map"
	TransformFilter  = "filter"
	TransformMerge   = "merge"
	TransformFormat  = "format"
	TransformParse   = "parse"
	TransformLiteral = "literal"
)

// TransformConfig maps upstream outputs into a new value without I/O.
type TransformConfig struct {
	Operation string `yaml:"operation" json:"operation" validate:"required,oneof=pick map filter merge format parse literal"`
	// Source is a path (steps.<id>.field, input.field, deps) selecting the value
	// to transform. Empty selects the merged outputs of direct dependencies.
	Source   string            `yaml:"source,omitempty" json:"source,omitempty"`
	Fields   []string          `yaml:"fields,omitempty" json:"fields,omitempty" validate:"required_if=Operation pick"`
	Mapping  map[string]string `yaml:"mapping,omitempty" json:"mapping,omitempty" validate:"required_if=Operation map"`
	Where    string            `yaml:"where,omitempty" json:"where,omitempty" validate:"required_if=Operation filter"`
	Sources  []string          `yaml:"sources,omitempty" json:"sources,omitempty"`
	Template string            `yaml:"template,omitempty" json:"template,omitempty"`
	Encoding string            `yaml:"encoding,omitempty" json:"encoding,omitempty" validate:"omitempty,oneof=json yaml"`
	Value    any               `yaml:"value,omitempty" json:"value,omitempty"`
}

func (*LLMPromptConfig) StepType() StepType { return TypeLLMPrompt }
func (*CodeConfig) StepType() StepType      { return TypeCode }
func (*FileConfig) StepType() StepType      { return TypeFile }
func (*HTTPConfig) StepType() StepType      { return TypeHTTPAPI }
func (*ConditionConfig) StepType() StepType { return TypeCondition }
func (*TransformConfig) StepType() StepType { return TypeTransform }

func newConfig(t StepType) StepConfig {
	switch t {
	case TypeLLMPrompt:
		return &LLMPromptConfig{}
	case TypeCode:
		return &CodeConfig{}
	case TypeFile:
		return &FileConfig{}
	case TypeHTTPAPI:
		return &HTTPConfig{}
	case TypeCondition:
		return &ConditionConfig{}
	case TypeTransform:
		return &TransformConfig{}
	}
	return nil
}

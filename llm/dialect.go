package llm

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Dialect translates between the universal request/response types and one
// provider's chat API. llm/openai and llm/ollama register theirs from init.
type Dialect interface {
	Name() string
	ChatPath() string
	// HealthPath is probed by IsAvailable. Empty disables the probe.
	HealthPath() string
	BuildRequest(req CompletionRequest) (any, error)
	// ParseResponse returns a CONTENT_POLICY AppError when the provider
	// withheld the reply.
	ParseResponse(body []byte) (*CompletionResponse, error)
}

// ErrorClassifier is implemented by dialects that understand their
// provider's error bodies. ClassifyError returns nil for bodies it does not
// recognize, leaving the HTTP status classification in place.
type ErrorClassifier interface {
	ClassifyError(statusCode int, body []byte) error
}

var registry = struct {
	sync.RWMutex
	byName map[string]Dialect
}{byName: map[string]Dialect{}}

// RegisterDialect makes d available to New under name. Like sql.Register it
// panics on a nil dialect or a name registered twice.
func RegisterDialect(name string, d Dialect) {
	if d == nil {
		panic("llm: RegisterDialect with nil dialect")
	}
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[name]; dup {
		panic("llm: RegisterDialect called twice for " + name)
	}
	registry.byName[name] = d
}

// GetDialect looks up a registered dialect.
func GetDialect(name string) (Dialect, error) {
	registry.RLock()
	d, ok := registry.byName[name]
	registry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: unknown dialect %q (registered: %s)", name, strings.Join(Dialects(), ", "))
	}
	return d, nil
}

// Dialects lists registered dialect names in order.
func Dialects() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.byName))
	for name := range registry.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

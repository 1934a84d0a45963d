// Package pipeline defines the declarative workflow model: a Pipeline is an
// immutable, versioned list of StepDefinitions, each carrying a typed config
// selected by its step type.
//
// Definitions are decoded from YAML or JSON. Decoding is strict: an unknown
// step type or config key is a definition error naming the offending step.
package pipeline

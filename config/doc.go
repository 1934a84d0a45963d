// Package config loads pipeflow configuration from a YAML file, an optional
// .env file and PIPEFLOW_ prefixed environment variables, in that order of
// increasing precedence.
//
// Nested keys are addressed in the environment with a double underscore:
//
//	PIPEFLOW_ENGINE__MAX_CONCURRENCY=8   ->  engine.max_concurrency: 8
package config

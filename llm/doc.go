// Package llm is the LLM collaborator used by LLM-Prompt steps: a
// config-driven client built on httpclient that talks to any provider
// through a Dialect, similar to how database/sql works with drivers.
//
// The package provides:
//   - Universal types: [CompletionRequest], [CompletionResponse], [Message], [Usage]
//   - [Dialect] interface: maps universal types to/from provider-specific HTTP format
//   - [Client]: composes httpclient and a Dialect into a complete LLM client
//   - Dialect registry: [RegisterDialect] / [GetDialect] for config-driven selection
//   - JSON replies: [JSONMode], [DecodeJSON]
//
// Import a dialect package for side-effect registration, then create a client:
//
//	import (
//	    "github.com/kbukum/pipeflow/llm"
//	    _ "github.com/kbukum/pipeflow/llm/ollama"
//	)
//
//	client, err := llm.New(llm.Config{
//	    Dialect: "ollama",
//	    BaseURL: "http://localhost:11434",
//	    Model:   "qwen2.5:1.5b",
//	})
//
//	resp, err := client.Execute(ctx, llm.UserPrompt("You are terse.", "Hello!"))
//
// Errors are AppErrors. Provider overload, 429 and network failures are
// transient; content policy refusals are fatal and never retried.
package llm

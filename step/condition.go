package step

import (
	"context"

	"github.com/kbukum/pipeflow/expr"
	"github.com/kbukum/pipeflow/pipeline"
)

// ConditionHandler evaluates condition steps. It performs no I/O; the only
// effect besides its output is the set of steps it prunes.
type ConditionHandler struct{}

// NewConditionHandler creates a ConditionHandler.
func NewConditionHandler() *ConditionHandler { return &ConditionHandler{} }

func (h *ConditionHandler) Type() pipeline.StepType { return pipeline.TypeCondition }

// Check compiles the expression.
func (h *ConditionHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.ConditionConfig](def)
	if err != nil {
		return err
	}
	if _, err := expr.Compile(cfg.Expression); err != nil {
		return definitionError(def, err)
	}
	return nil
}

// Execute evaluates the expression against the scope and prunes the branch
// not taken.
func (h *ConditionHandler) Execute(_ context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.ConditionConfig](req.Step)
	if err != nil {
		return nil, err
	}
	e, err := expr.Compile(cfg.Expression)
	if err != nil {
		return nil, err
	}

	result := e.EvalBool(req.Scope)
	branch, prune := "true", cfg.OnFalse
	if !result {
		branch, prune = "false", cfg.OnTrue
	}
	return &Result{
		Output: map[string]any{"result": result, "branch": branch},
		Prune:  append([]string(nil), prune...),
	}, nil
}

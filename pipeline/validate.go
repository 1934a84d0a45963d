package pipeline

import (
	"fmt"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/validation"
)

// Validate checks everything about p that can be decided per step: ids,
// types, typed configs and references. Graph-level checks (cycles) live in
// package dag.
func Validate(p *Pipeline) error {
	if p == nil {
		return errors.Definition("pipeline is nil")
	}
	v := validation.New().Required("id", p.ID)
	if len(p.Steps) == 0 {
		v.AddError("steps", "at least one step is required")
	}
	if err := v.Validate(); err != nil {
		return definitionFrom(fmt.Sprintf("pipeline %s is invalid", p.ID), err)
	}

	ids := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		id := p.Steps[i].ID
		if id == "" {
			return errors.Definition(fmt.Sprintf("step #%d has no id", i+1))
		}
		if ids[id] {
			return stepError(id, "duplicate step id")
		}
		ids[id] = true
	}

	for i := range p.Steps {
		if err := validateStep(&p.Steps[i], ids); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *StepDefinition, ids map[string]bool) error {
	if !s.Type.Valid() {
		return stepError(s.ID, fmt.Sprintf("unknown step type %q", s.Type))
	}
	if s.Config == nil {
		return stepError(s.ID, "config is required")
	}
	if s.Config.StepType() != s.Type {
		return stepError(s.ID, fmt.Sprintf("config of type %s does not match step type %s", s.Config.StepType(), s.Type))
	}
	if err := validation.Validate(s.Config); err != nil {
		return definitionFrom(fmt.Sprintf("step %s: invalid config", s.ID), err).WithDetail("step_id", s.ID)
	}
	if s.Retry != nil {
		if err := validation.Validate(s.Retry); err != nil {
			return definitionFrom(fmt.Sprintf("step %s: invalid retry policy", s.ID), err).WithDetail("step_id", s.ID)
		}
	}

	for _, dep := range s.DependsOn {
		if dep == s.ID {
			return stepError(s.ID, "depends on itself")
		}
		if !ids[dep] {
			return stepError(s.ID, fmt.Sprintf("depends on unknown step %q", dep))
		}
	}

	if cond, ok := s.Config.(*ConditionConfig); ok {
		seen := make(map[string]bool)
		for _, target := range cond.Targets() {
			switch {
			case target == s.ID:
				return stepError(s.ID, "condition cannot target itself")
			case !ids[target]:
				return stepError(s.ID, fmt.Sprintf("condition targets unknown step %q", target))
			case seen[target]:
				return stepError(s.ID, fmt.Sprintf("step %q appears in more than one branch", target))
			}
			seen[target] = true
		}
	}
	return nil
}

func definitionFrom(msg string, cause error) *errors.AppError {
	def := errors.Definition(msg).WithCause(cause)
	if appErr, ok := errors.AsAppError(cause); ok && appErr.Details != nil {
		def.WithDetails(appErr.Details)
	}
	return def
}

package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/pipeflow/dag"
	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
	"github.com/kbukum/pipeflow/step"
	"github.com/kbukum/pipeflow/tracker"
)

// run is one execution as seen by both its coordinator, the only writer, and
// Engine readers.
type run struct {
	mu     sync.RWMutex
	exec   *Execution
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) snapshot() *Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exec.Clone()
}

// coordinator drives one execution wave by wave. All writes to the execution
// record and the state context happen on the goroutine running execute;
// workers report back over a channel.
type coordinator struct {
	run      *run
	graph    *dag.Graph
	registry *step.Registry
	cfg      Config
	state    *state.Context
	steps    map[string]*StepExecution
	recorder *recorder
	log      *logger.Logger
	metrics  *observability.Metrics

	// failure is the first step failure that aborts the execution.
	failure *Failure
}

type eventKind int

const (
	evAttempt eventKind = iota
	evFinished
)

type event struct {
	kind    eventKind
	stepID  string
	attempt int
	result  *step.Result
	err     error
}

func (c *coordinator) executionID() string { return c.run.exec.ID }
func (c *coordinator) pipelineID() string  { return c.run.exec.PipelineID }

// execute runs the execution to a terminal status.
func (c *coordinator) execute(ctx context.Context) {
	defer close(c.run.done)

	ctx, span := observability.StartExecutionSpan(ctx, c.executionID(), c.pipelineID())
	defer span.End()
	ctx = logger.ContextWithExecution(ctx, c.executionID(), c.pipelineID())

	c.recordExecution(StatusPending)
	c.run.mu.Lock()
	c.run.exec.Status = StatusRunning
	c.run.exec.StartedAt = timePtr(time.Now().UTC())
	c.run.mu.Unlock()
	c.recordExecution(StatusRunning)
	c.log.Info("execution started", map[string]interface{}{"steps": len(c.steps)})

	status, failure := c.drive(ctx)
	c.finalize(ctx, status, failure)
}

// drive dispatches waves until nothing is runnable.
func (c *coordinator) drive(ctx context.Context) (Status, *Failure) {
	wave := 0
	for {
		if ctx.Err() != nil {
			return StatusCancelled, nil
		}
		ready := c.graph.Ready(c.isDone, c.isStarted)
		if len(ready) == 0 {
			if open := c.nonTerminal(); len(open) > 0 {
				err := errors.EngineInvariant(fmt.Sprintf("no runnable steps while %s not finished", strings.Join(open, ", ")))
				c.log.Error("execution stuck", map[string]interface{}{logger.FieldError: err.Error()})
				return StatusFailed, FailureOf("", err)
			}
			return StatusCompleted, nil
		}

		runnable := make([]string, 0, len(ready))
		for _, id := range ready {
			if reason := c.skipReason(id); reason != "" {
				c.skip(id, reason)
				continue
			}
			runnable = append(runnable, id)
		}
		if len(runnable) == 0 {
			continue
		}

		wave++
		c.runWave(ctx, wave, runnable)
		if c.failure != nil {
			return StatusFailed, c.failure
		}
	}
}

// runWave dispatches ids against one snapshot, at most MaxConcurrency at a
// time, and applies their results as they arrive. A failing step aborts the
// rest of the wave.
func (c *coordinator) runWave(ctx context.Context, wave int, ids []string) {
	waveCtx, abort := context.WithCancel(ctx)
	defer abort()

	snap := c.state.Snapshot()
	for _, id := range ids {
		c.move(id, StepReady, nil)
	}
	c.log.Debug("dispatching wave", map[string]interface{}{
		logger.FieldWave: wave,
		"step_ids":       ids,
		"version":        snap.Version(),
	})

	events := make(chan event, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxConcurrency)
	go func() {
		for _, id := range ids {
			g.Go(func() error {
				c.runStep(waveCtx, id, snap, events)
				return nil
			})
		}
		_ = g.Wait()
		close(events)
	}()

	for ev := range events {
		switch ev.kind {
		case evAttempt:
			c.startAttempt(ev.stepID, ev.attempt)
		case evFinished:
			c.finishStep(ctx, ev, abort)
		}
	}
}

// runStep executes one step on a worker goroutine. It never touches the
// execution record.
func (c *coordinator) runStep(ctx context.Context, id string, snap *state.Snapshot, events chan<- event) {
	if ctx.Err() != nil {
		events <- event{kind: evFinished, stepID: id, err: errors.Cancelled("step " + id)}
		return
	}
	def := c.graph.Step(id)
	h, ok := c.registry.Get(def.Type)
	if !ok {
		events <- event{kind: evFinished, stepID: id, err: errors.HandlerFatal(fmt.Sprintf("no handler registered for type %s", def.Type))}
		return
	}

	req := step.Request{
		ExecutionID: c.executionID(),
		PipelineID:  c.pipelineID(),
		Step:        def,
		Scope:       snap.Scope(c.graph.Deps(id)),
	}
	if err := step.Preflight(h, &req); err != nil {
		events <- event{kind: evFinished, stepID: id, err: err}
		return
	}

	log := c.log.WithFields(map[string]interface{}{logger.FieldStepID: id, logger.FieldStepType: string(def.Type)})
	res, attempts, err := attempt(logger.ContextWithStep(ctx, id), h, req, policyFor(c.cfg, def),
		func(n int) {
			events <- event{kind: evAttempt, stepID: id, attempt: n}
		},
		func(n int, err error, delay time.Duration) {
			log.Warn("retrying step", map[string]interface{}{
				logger.FieldAttempt: n,
				logger.FieldKind:    string(errors.KindOf(err)),
				logger.FieldError:   err.Error(),
				"delay_ms":          delay.Milliseconds(),
			})
		})
	events <- event{kind: evFinished, stepID: id, attempt: attempts, result: res, err: err}
}

func (c *coordinator) startAttempt(id string, n int) {
	c.run.mu.Lock()
	c.steps[id].Attempts = n
	c.run.mu.Unlock()
	if n == 1 {
		c.move(id, StepRunning, func(s *StepExecution) { s.StartedAt = timePtr(time.Now().UTC()) })
	}
}

func (c *coordinator) finishStep(ctx context.Context, ev event, abort context.CancelFunc) {
	id := ev.stepID
	def := c.graph.Step(id)
	err := ev.err

	if err == nil {
		err = c.state.Put(id, ev.result.Output)
		if err == nil {
			output, _ := c.state.Output(id)
			c.move(id, StepSucceeded, func(s *StepExecution) {
				s.Output = output
				s.CompletedAt = timePtr(time.Now().UTC())
				c.run.exec.Outputs[id] = state.Clone(output)
			})
			for _, target := range ev.result.Prune {
				c.prune(target)
			}
			return
		}
	}

	_ = c.state.MarkAbsent(id)
	failure := FailureOf(id, err)
	status := StepFailed
	if failure.Kind == errors.KindCancelled && (ctx.Err() != nil || c.failure != nil) {
		status = StepCancelled
	}
	c.move(id, status, func(s *StepExecution) {
		s.Error = failure
		s.CompletedAt = timePtr(time.Now().UTC())
	})
	if status == StepCancelled {
		return
	}

	fields := map[string]interface{}{
		logger.FieldStepID:  id,
		logger.FieldAttempt: ev.attempt,
		logger.FieldKind:    string(failure.Kind),
		logger.FieldError:   failure.Message,
	}
	if def.BestEffort {
		c.log.Warn("best-effort step failed, continuing", fields)
		return
	}
	c.log.Error("step failed, aborting execution", fields)
	if c.failure == nil {
		c.failure = failure
		abort()
	}
}

// prune skips a branch target that has not started yet.
func (c *coordinator) prune(id string) {
	s, ok := c.steps[id]
	if !ok || s.Status != StepPending {
		return
	}
	c.skip(id, SkipBranchPruned)
}

// skipReason decides whether a ready step is skipped without dispatch:
// disabled steps, and steps whose every dependency was pruned.
func (c *coordinator) skipReason(id string) string {
	if !c.graph.Step(id).IsEnabled() {
		return SkipDisabled
	}
	deps := c.graph.Deps(id)
	if len(deps) == 0 {
		return ""
	}
	for _, dep := range deps {
		if c.steps[dep].SkipReason != SkipBranchPruned {
			return ""
		}
	}
	return SkipBranchPruned
}

func (c *coordinator) skip(id, reason string) {
	_ = c.state.MarkAbsent(id)
	c.move(id, StepSkipped, func(s *StepExecution) {
		s.SkipReason = reason
		s.CompletedAt = timePtr(time.Now().UTC())
	})
}

// move applies a forward status change and records it. Backward or repeated
// moves are ignored.
func (c *coordinator) move(id string, to StepStatus, mutate func(*StepExecution)) {
	c.run.mu.Lock()
	s := c.steps[id]
	if !s.Status.canMove(to) {
		from := s.Status
		c.run.mu.Unlock()
		c.log.Warn("ignoring step transition", map[string]interface{}{
			logger.FieldStepID: id,
			"from":             string(from),
			"to":               string(to),
		})
		return
	}
	s.Status = to
	if mutate != nil {
		mutate(s)
	}
	t := tracker.Transition{
		ExecutionID: c.executionID(),
		PipelineID:  c.pipelineID(),
		StepID:      id,
		Status:      string(to),
		Attempt:     s.Attempts,
		Payload:     stepPayload(s),
		At:          time.Now().UTC(),
	}
	c.run.mu.Unlock()

	c.recorder.record(t)
	c.log.Debug("step status changed", map[string]interface{}{
		logger.FieldStepID:  id,
		logger.FieldStatus:  string(to),
		logger.FieldAttempt: t.Attempt,
	})
}

func stepPayload(s *StepExecution) map[string]any {
	switch {
	case s.Error != nil:
		return map[string]any{"kind": string(s.Error.Kind), "code": s.Error.Code, "message": s.Error.Message}
	case s.SkipReason != "":
		return map[string]any{"reason": s.SkipReason}
	}
	return nil
}

func (c *coordinator) isDone(id string) bool    { return c.steps[id].Status.Terminal() }
func (c *coordinator) isStarted(id string) bool { return c.steps[id].Status != StepPending }

func (c *coordinator) nonTerminal() []string {
	var open []string
	for _, id := range c.graph.Order() {
		if !c.steps[id].Status.Terminal() {
			open = append(open, id)
		}
	}
	return open
}

// finalize cancels whatever did not finish, flushes the tracker and only then
// publishes the terminal status.
func (c *coordinator) finalize(ctx context.Context, status Status, failure *Failure) {
	if status != StatusCompleted {
		for _, id := range c.nonTerminal() {
			c.move(id, StepCancelled, func(s *StepExecution) { s.CompletedAt = timePtr(time.Now().UTC()) })
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), c.cfg.TrackerFlushTimeout)
	defer cancel()
	if err := c.recorder.flush(flushCtx); err != nil {
		c.log.Warn("tracker flush incomplete", map[string]interface{}{logger.FieldError: err.Error()})
	}

	c.run.mu.Lock()
	c.run.exec.Status = status
	c.run.exec.Error = failure
	c.run.exec.CompletedAt = timePtr(time.Now().UTC())
	started := c.run.exec.StartedAt
	c.run.mu.Unlock()

	c.recordExecution(status)
	if err := c.recorder.flush(flushCtx); err != nil {
		c.log.Warn("tracker flush incomplete", map[string]interface{}{logger.FieldError: err.Error()})
	}
	c.recorder.close()

	c.metrics.RecordExecution(context.WithoutCancel(ctx), c.pipelineID(), string(status))
	fields := map[string]interface{}{logger.FieldStatus: string(status)}
	if started != nil {
		fields[logger.FieldDuration] = time.Since(*started).Milliseconds()
	}
	if failure != nil {
		fields[logger.FieldStepID] = failure.StepID
		fields[logger.FieldKind] = string(failure.Kind)
		fields[logger.FieldError] = failure.Message
	}
	c.log.Info("execution finished", fields)
}

func (c *coordinator) recordExecution(status Status) {
	c.run.mu.RLock()
	var payload map[string]any
	if f := c.run.exec.Error; f != nil {
		payload = map[string]any{"step_id": f.StepID, "kind": string(f.Kind), "code": f.Code, "message": f.Message}
	}
	c.run.mu.RUnlock()
	c.recorder.record(tracker.Transition{
		ExecutionID: c.executionID(),
		PipelineID:  c.pipelineID(),
		Status:      string(status),
		Payload:     payload,
		At:          time.Now().UTC(),
	})
}

// newSteps creates the pending record of every step in definition order.
func newSteps(p *pipeline.Pipeline) ([]*StepExecution, map[string]*StepExecution) {
	list := make([]*StepExecution, len(p.Steps))
	byID := make(map[string]*StepExecution, len(p.Steps))
	for i := range p.Steps {
		def := &p.Steps[i]
		s := &StepExecution{
			StepID:     def.ID,
			Type:       string(def.Type),
			Status:     StepPending,
			BestEffort: def.BestEffort,
		}
		list[i] = s
		byID[def.ID] = s
	}
	return list, byID
}

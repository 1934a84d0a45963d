package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/pipeflow/dag"
	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
	"github.com/kbukum/pipeflow/step"
	"github.com/kbukum/pipeflow/tracker"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.ServiceUnavailable("execution engine")

// Engine validates and runs pipeline executions and keeps their records.
type Engine struct {
	cfg      Config
	registry *step.Registry
	store    pipeline.Store
	tracker  tracker.Tracker
	log      *logger.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	runs   map[string]*run
	order  []string
	closed bool
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the store Submit resolves pipeline references against.
func WithStore(s pipeline.Store) Option { return func(e *Engine) { e.store = s } }

// WithTracker sets the transition tracker. The default discards transitions.
func WithTracker(t tracker.Tracker) Option { return func(e *Engine) { e.tracker = t } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New creates an Engine dispatching steps through registry.
func New(cfg Config, registry *step.Registry, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("execution: registry is required")
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		tracker:  tracker.Nop{},
		log:      logger.Nop(),
		runs:     make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("engine")
	return e, nil
}

// Submit resolves ref against the store and starts an execution.
func (e *Engine) Submit(ctx context.Context, ref string, input map[string]any) (string, error) {
	if e.store == nil {
		return "", errors.NotFound("pipeline", ref)
	}
	p, err := e.store.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return e.SubmitPipeline(ctx, p, input)
}

// SubmitPipeline validates p and starts an execution of it. Definition
// problems are reported here and no execution is created. The execution
// outlives ctx; use Cancel to stop it.
func (e *Engine) SubmitPipeline(ctx context.Context, p *pipeline.Pipeline, input map[string]any) (string, error) {
	if err := pipeline.Validate(p); err != nil {
		return "", err
	}
	p = snapshotPipeline(p)
	graph, err := e.check(p)
	if err != nil {
		return "", err
	}
	sctx, err := state.New(input)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	list, byID := newSteps(p)
	r := &run{
		exec: &Execution{
			ID:              id,
			PipelineID:      p.ID,
			PipelineVersion: p.Version,
			Status:          StatusPending,
			Input:           sctx.Snapshot().Input(),
			Steps:           list,
			Outputs:         make(map[string]any),
			CreatedAt:       time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	log := e.log.WithFields(map[string]interface{}{
		logger.FieldExecutionID: id,
		logger.FieldPipelineID:  p.ID,
	})
	c := &coordinator{
		run:      r,
		graph:    graph,
		registry: e.registry,
		cfg:      e.cfg,
		state:    sctx,
		steps:    byID,
		recorder: newRecorder(e.tracker, log),
		log:      log,
		metrics:  e.metrics,
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		c.recorder.close()
		return "", ErrClosed
	}
	e.runs[id] = r
	e.order = append(e.order, id)
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer cancel()
		c.execute(runCtx)
	}()
	return id, nil
}

// Validate runs the submission checks on p without starting an execution.
func (e *Engine) Validate(p *pipeline.Pipeline) error {
	if err := pipeline.Validate(p); err != nil {
		return err
	}
	_, err := e.check(p)
	return err
}

func (e *Engine) check(p *pipeline.Pipeline) (*dag.Graph, error) {
	graph, err := dag.Build(p)
	if err != nil {
		return nil, err
	}
	if err := e.registry.Check(p); err != nil {
		return nil, err
	}
	return graph, nil
}

func (e *Engine) lookup(id string) (*run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[id]
	if !ok {
		return nil, errors.NotFound("execution", id)
	}
	return r, nil
}

// GetStatus returns a deep copy of the execution record.
func (e *Engine) GetStatus(id string) (*Execution, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// Cancel asks a running execution to stop. Cancelling a finished execution
// is a no-op.
func (e *Engine) Cancel(id string) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}
	e.log.Info("cancelling execution", map[string]interface{}{logger.FieldExecutionID: id})
	r.cancel()
	return nil
}

// Wait blocks until the execution is terminal or ctx is done, and returns
// its final record.
func (e *Engine) Wait(ctx context.Context, id string) (*Execution, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return nil, errors.Cancelled("waiting for execution " + id).WithCause(ctx.Err())
	}
}

// List returns every known execution in submission order.
func (e *Engine) List() []*Execution {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.order))
	for _, id := range e.order {
		runs = append(runs, e.runs[id])
	}
	e.mu.RUnlock()

	out := make([]*Execution, len(runs))
	for i, r := range runs {
		out[i] = r.snapshot()
	}
	return out
}

// Close rejects new submissions, cancels running executions and waits for
// them to finish or for ctx to end.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, r := range e.runs {
		r.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshotPipeline copies the parts of p the engine indexes, so later edits
// to the caller's slices cannot reach a running execution.
func snapshotPipeline(p *pipeline.Pipeline) *pipeline.Pipeline {
	c := *p
	c.Steps = make([]pipeline.StepDefinition, len(p.Steps))
	for i, s := range p.Steps {
		if s.DependsOn != nil {
			s.DependsOn = append([]string{}, s.DependsOn...)
		}
		c.Steps[i] = s
	}
	return &c
}

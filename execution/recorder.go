package execution

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/resilience"
	"github.com/kbukum/pipeflow/tracker"
)

// recorder writes transitions to a tracker in the background, in order,
// retrying each write until it is acknowledged or the recorder is closed.
type recorder struct {
	tracker tracker.Tracker
	log     *logger.Logger
	retry   resilience.RetryConfig

	mu      sync.Mutex
	queue   []tracker.Transition
	pending int
	wake    chan struct{}
	idle    chan struct{} // closed and replaced whenever pending drops to zero

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newRecorder(t tracker.Tracker, log *logger.Logger) *recorder {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{
		tracker: t,
		log:     log,
		retry: resilience.RetryConfig{
			MaxAttempts: 1 << 30,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Exponential: true,
			Jitter:      0.2,
			RetryIf:     func(error) bool { return true },
		},
		wake:   make(chan struct{}, 1),
		idle:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	close(r.idle)
	go r.loop()
	return r
}

// record queues t without blocking.
func (r *recorder) record(t tracker.Transition) {
	r.mu.Lock()
	r.queue = append(r.queue, t)
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// flush waits until every queued transition has been acknowledged.
func (r *recorder) flush(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the recorder. Unacknowledged transitions are dropped.
func (r *recorder) close() {
	r.cancel()
	<-r.done
}

func (r *recorder) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			select {
			case <-r.wake:
				continue
			case <-r.ctx.Done():
				return
			}
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		tagged := logger.ContextWithExecution(r.ctx, t.ExecutionID, t.PipelineID)
		err := resilience.RetryFunc(tagged, r.retry, func(ctx context.Context, attempt int) error {
			err := r.tracker.RecordTransition(ctx, t)
			if err != nil {
				r.log.Warn("tracker write failed", map[string]interface{}{
					logger.FieldStepID:  t.StepID,
					logger.FieldStatus:  t.Status,
					logger.FieldAttempt: attempt,
					logger.FieldError:   err.Error(),
				})
			}
			return err
		})
		if err != nil {
			r.log.Error("dropping tracker transition", map[string]interface{}{
				logger.FieldStepID: t.StepID,
				logger.FieldStatus: t.Status,
				logger.FieldError:  err.Error(),
			})
		}

		r.mu.Lock()
		r.pending--
		if r.pending == 0 {
			close(r.idle)
		}
		r.mu.Unlock()
	}
}

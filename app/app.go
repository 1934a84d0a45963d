// Package app wires a pipeflow process: tracker backends, step handlers and
// their collaborators, and the execution engine, on top of bootstrap.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/pipeflow/bootstrap"
	"github.com/kbukum/pipeflow/database"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/httpclient"
	"github.com/kbukum/pipeflow/kafka"
	"github.com/kbukum/pipeflow/kafka/producer"
	"github.com/kbukum/pipeflow/llm"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/redis"
	"github.com/kbukum/pipeflow/sandbox"
	"github.com/kbukum/pipeflow/sandbox/docker"
	"github.com/kbukum/pipeflow/sandbox/process"
	"github.com/kbukum/pipeflow/step"
	"github.com/kbukum/pipeflow/storage"
	"github.com/kbukum/pipeflow/tracker"
	"github.com/kbukum/pipeflow/tracker/kafkasink"
	"github.com/kbukum/pipeflow/tracker/redisstore"
	"github.com/kbukum/pipeflow/tracker/sqlstore"

	// Dialects and storage providers register themselves.
	_ "github.com/kbukum/pipeflow/llm/ollama"
	_ "github.com/kbukum/pipeflow/llm/openai"
	_ "github.com/kbukum/pipeflow/storage/local"
	_ "github.com/kbukum/pipeflow/storage/s3"
)

// Runtime is what Wire builds. Its fields are set during the configure
// phase, so they are only valid once the app has started.
type Runtime struct {
	Engine    *execution.Engine
	Pipelines *pipeline.MemoryStore
	Handlers  *step.Registry
	// Reader is the first configured backend that can read transitions
	// back, or nil.
	Reader tracker.Reader
}

// backends holds the infrastructure components tracker backends sit on.
type backends struct {
	db       *database.Component
	redis    *redis.Component
	producer *producer.Producer
}

// Wire registers telemetry and the infrastructure components the tracker
// backends need, plus a configure callback that builds the handlers and the
// engine once that infrastructure is up. extra trackers receive every
// transition alongside the configured backends.
func Wire(a *bootstrap.App[*Config], extra ...tracker.Tracker) (*Runtime, error) {
	cfg := a.Cfg
	log := a.Logger
	rt := &Runtime{}

	if err := a.RegisterComponent(&telemetryComponent{cfg: cfg.Observability}); err != nil {
		return nil, err
	}

	var b backends
	if cfg.Tracker.Enabled(BackendSQL) {
		b.db = database.NewComponent(cfg.Tracker.SQL, log.WithComponent("database"))
		if err := a.RegisterComponent(b.db); err != nil {
			return nil, err
		}
	}
	if cfg.Tracker.Enabled(BackendRedis) {
		b.redis = redis.NewComponent(cfg.Tracker.Redis.Config, log)
		if err := a.RegisterComponent(b.redis); err != nil {
			return nil, err
		}
	}
	if cfg.Tracker.Enabled(BackendKafka) {
		p, err := producer.NewLazyProducer(cfg.Tracker.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("tracker.kafka: %w", err)
		}
		comp := kafka.NewComponent(cfg.Tracker.Kafka, log)
		comp.SetProducer(p)
		if err := a.RegisterComponent(comp); err != nil {
			return nil, err
		}
		b.producer = p
	}

	a.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		return rt.build(ctx, a, b, extra)
	})
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, a *bootstrap.App[*Config], b backends, extra []tracker.Tracker) error {
	cfg := a.Cfg
	log := a.Logger

	metrics, err := observability.NewMetrics(observability.Meter("pipeflow"))
	if err != nil {
		return err
	}

	handlers, probes, err := BuildHandlers(ctx, cfg, log)
	if err != nil {
		return err
	}
	handlers.Wrap(func(h step.Handler) step.Handler { return step.WithLogging(h, log) })
	handlers.Wrap(step.WithTracing)
	handlers.Wrap(func(h step.Handler) step.Handler { return step.WithMetrics(h, metrics) })

	trk, reader, err := buildTracker(cfg.Tracker, b, extra...)
	if err != nil {
		return err
	}

	store, err := pipelineStore(cfg.Engine.PipelinesDir)
	if err != nil {
		return err
	}

	engine, err := execution.New(cfg.Engine, handlers,
		execution.WithStore(store),
		execution.WithTracker(trk),
		execution.WithLogger(log),
		execution.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	for _, p := range probes {
		if err := a.RegisterComponent(p); err != nil {
			return err
		}
	}
	if err := a.RegisterComponent(&engineComponent{engine: engine, handlers: handlers, cfg: cfg.Engine}); err != nil {
		return err
	}

	rt.Engine = engine
	rt.Pipelines = store
	rt.Handlers = handlers
	rt.Reader = reader
	a.Summary.TrackPipelines(store.List())
	return nil
}

// BuildHandlers creates one handler per step type from cfg. The returned
// probes report the health of collaborators that can be checked.
func BuildHandlers(ctx context.Context, cfg *Config, log *logger.Logger) (*step.Registry, []*probeComponent, error) {
	var probes []*probeComponent

	client, err := httpclient.New(cfg.HTTP)
	if err != nil {
		return nil, nil, fmt.Errorf("http: %w", err)
	}

	files, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, err
	}

	sb, probe, err := buildSandbox(cfg.Sandbox, log)
	if err != nil {
		return nil, nil, err
	}
	if probe != nil {
		probes = append(probes, probe)
	}

	registry := step.NewRegistry(
		step.NewConditionHandler(),
		step.NewTransformHandler(),
		step.NewHTTPHandler(client),
		step.NewFileHandler(files, cfg.Storage.Scope, cfg.Storage.MaxFileSize),
		step.NewCodeHandler(sb, languages(cfg.Sandbox)...),
	)

	if cfg.LLMEnabled() {
		completer, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(step.NewLLMHandler(completer))
		probes = append(probes, &probeComponent{
			name:    "llm",
			kind:    "llm",
			details: fmt.Sprintf("dialect=%s model=%s", cfg.LLM.Dialect, cfg.LLM.Model),
			probe: func(ctx context.Context) error {
				if !completer.IsAvailable(ctx) {
					return fmt.Errorf("%s unreachable", cfg.LLM.BaseURL)
				}
				return nil
			},
		})
	}
	return registry, probes, nil
}

func buildSandbox(cfg sandbox.Config, log *logger.Logger) (sandbox.Sandbox, *probeComponent, error) {
	var (
		sb    sandbox.Sandbox
		probe *probeComponent
	)
	switch cfg.Provider {
	case sandbox.ProviderDocker:
		runner, err := docker.New(cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("sandbox: %w", err)
		}
		sb = runner
		probe = &probeComponent{
			name:    "sandbox",
			kind:    "sandbox",
			details: fmt.Sprintf("provider=docker network=%s max_concurrent=%d", cfg.Network, cfg.MaxConcurrent),
			probe:   runner.HealthCheck,
		}
	default:
		sb = process.New(cfg, log)
	}
	if cfg.MaxConcurrent > 0 {
		sb = sandbox.Limit(sb, cfg.MaxConcurrent, cfg.MaxWait)
	}
	return sb, probe, nil
}

func languages(cfg sandbox.Config) []string {
	out := make([]string, 0, len(cfg.Languages))
	for name := range cfg.Languages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// buildTracker assembles the configured backends in listed order, then
// extra. More than one tracker is fanned out through tracker.Multi.
func buildTracker(cfg TrackerConfig, b backends, extra ...tracker.Tracker) (tracker.Tracker, tracker.Reader, error) {
	var (
		all    tracker.Multi
		reader tracker.Reader
	)
	for _, name := range cfg.Backends {
		var t tracker.Tracker
		switch name {
		case BackendMemory:
			t = tracker.NewMemory()
		case BackendSQL:
			s, err := sqlstore.New(b.db.DB())
			if err != nil {
				return nil, nil, fmt.Errorf("tracker.sql: %w", err)
			}
			t = s
		case BackendRedis:
			t = redisstore.New(b.redis.Client(), cfg.Redis.TTL)
		case BackendKafka:
			t = kafkasink.New(b.producer)
		default:
			return nil, nil, fmt.Errorf("tracker.backends: unsupported backend %q", name)
		}
		if r, ok := t.(tracker.Reader); ok && reader == nil {
			reader = r
		}
		all = append(all, t)
	}
	all = append(all, extra...)
	if len(all) == 1 {
		return all[0], reader, nil
	}
	return all, reader, nil
}

func pipelineStore(dir string) (*pipeline.MemoryStore, error) {
	if dir == "" {
		return pipeline.NewMemoryStore()
	}
	return pipeline.NewDirStore(dir)
}

// ShutdownTimeout is the graceful timeout the CLI gives the app: the engine
// flush timeout plus room for the components behind it.
func ShutdownTimeout(cfg *Config) time.Duration {
	return cfg.Engine.TrackerFlushTimeout + 10*time.Second
}

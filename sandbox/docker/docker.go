// Package docker runs code steps in throwaway containers through the Docker
// Engine API. Each run gets its own container with a memory cap and, by
// default, no network.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/sandbox"
)

const managedLabel = "pipeflow.sandbox"

// engine is the subset of the Docker client the runner uses.
type engine interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Ping(ctx context.Context) (types.Ping, error)
}

// Runner implements sandbox.Sandbox with Docker containers.
type Runner struct {
	client    engine
	languages map[string]sandbox.Language
	network   string
	log       *logger.Logger
}

// New connects to the Docker daemon at cfg.DockerHost (or the environment
// default when empty).
func New(cfg sandbox.Config, log *logger.Logger) (*Runner, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}
	return newRunner(cli, cfg, log), nil
}

func newRunner(cli engine, cfg sandbox.Config, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		client:    cli,
		languages: cfg.Languages,
		network:   cfg.Network,
		log:       log.WithComponent("sandbox.docker"),
	}
}

// Run executes req in a fresh container and removes it afterwards. When ctx
// ends first the container is killed.
func (r *Runner) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	lang, err := sandbox.Resolve(r.languages, req.Language)
	if err != nil {
		return nil, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if err := r.ensureImage(ctx, lang.Image); err != nil {
		return nil, sandbox.Failure(ctx, nil, err)
	}

	containerCfg, hostCfg := r.buildConfigs(lang, req)
	created, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, sandbox.Failure(ctx, nil, fmt.Errorf("docker: create container: %w", err))
	}
	id := created.ID
	log := r.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldContainerID, shortID(id)))
	defer r.remove(id, log)

	start := time.Now()
	if err := r.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, sandbox.Failure(ctx, nil, fmt.Errorf("docker: start container: %w", err))
	}

	exitCode, waitErr := r.wait(ctx, id)
	res := &sandbox.Result{ExitCode: exitCode, Duration: time.Since(start)}
	if waitErr != nil {
		r.kill(id, log)
		return res, sandbox.Failure(ctx, res, waitErr)
	}

	stdout, stderr, err := r.logs(context.WithoutCancel(ctx), id)
	if err != nil {
		log.Warn("reading container output failed", logger.ErrorFields("logs", err))
	}
	res.Stdout, res.Stderr = stdout, stderr

	log.Debug("container finished", logger.Fields("exit_code", exitCode, logger.FieldDuration, res.Duration.Milliseconds()))
	if err := sandbox.Failure(ctx, res, nil); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) buildConfigs(lang sandbox.Language, req sandbox.Request) (*container.Config, *container.HostConfig) {
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+req.Env[k])
	}

	containerCfg := &container.Config{
		Image:           lang.Image,
		Cmd:             sandbox.Argv(lang, req),
		Env:             env,
		Labels:          map[string]string{managedLabel: "true"},
		NetworkDisabled: r.network == "none",
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(r.network),
	}
	if req.MemoryLimitMB > 0 {
		hostCfg.Memory = int64(req.MemoryLimitMB) * 1024 * 1024
		hostCfg.MemorySwap = hostCfg.Memory
	}
	return containerCfg, hostCfg
}

func (r *Runner) wait(ctx context.Context, id string) (int, error) {
	statusCh, errCh := r.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return int(status.StatusCode), fmt.Errorf("docker: wait: %s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return -1, err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (r *Runner) logs(ctx context.Context, id string) (string, string, error) {
	reader, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("docker: get logs: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only stream

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}

// ensureImage pulls the image if not present locally.
func (r *Runner) ensureImage(ctx context.Context, ref string) error {
	if _, err := r.client.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	r.log.Info("pulling image", logger.Fields("image", ref))
	reader, err := r.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer reader.Close() //nolint:errcheck // progress stream is discarded
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (r *Runner) kill(id string, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.client.ContainerKill(ctx, id, "SIGKILL"); err != nil && !client.IsErrNotFound(err) {
		log.Warn("killing container failed", logger.ErrorFields("kill", err))
	}
}

func (r *Runner) remove(id string, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !client.IsErrNotFound(err) {
		log.Warn("removing container failed", logger.ErrorFields("remove", err))
	}
}

// HealthCheck verifies the daemon is reachable.
func (r *Runner) HealthCheck(ctx context.Context) error {
	if _, err := r.client.Ping(ctx); err != nil {
		return errors.ServiceUnavailable("docker").WithCause(err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

var _ sandbox.Sandbox = (*Runner)(nil)

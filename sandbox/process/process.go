// Package process runs code steps as local interpreter subprocesses. It is
// meant for trusted single-host deployments; use the docker runtime for
// isolation.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/sandbox"
)

// Runner implements sandbox.Sandbox with os/exec.
type Runner struct {
	languages   map[string]sandbox.Language
	gracePeriod time.Duration
	workDir     string
	log         *logger.Logger
}

// New creates a Runner from the sandbox config.
func New(cfg sandbox.Config, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		languages:   cfg.Languages,
		gracePeriod: cfg.GracePeriod,
		workDir:     cfg.WorkDir,
		log:         log.WithComponent("sandbox.process"),
	}
}

// Run executes req and waits for it to finish. If ctx is cancelled, the whole
// process group receives SIGTERM, then SIGKILL after the grace period.
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

	argv := sandbox.Argv(lang, req)
	if req.MemoryLimitMB > 0 && runtime.GOOS == "linux" {
		// ulimit applies to the exec'd interpreter and its children.
		limit := fmt.Sprintf(`ulimit -v %d && exec "$@"`, req.MemoryLimitMB*1024)
		argv = append([]string{"sh", "-c", limit, "sandbox"}, argv...)
	}

	c := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // running user code is the purpose of this package
	c.Dir = r.workDir
	c.Env = environ(req.Env)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	grace := r.gracePeriod
	if grace <= 0 {
		grace = 2 * time.Second
	}
	c.WaitDelay = grace

	start := time.Now()
	runErr := c.Run()
	res := &sandbox.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	r.log.WithContext(ctx).Debug("process finished", logger.Fields(
		"language", req.Language,
		"exit_code", res.ExitCode,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))

	if err := sandbox.Failure(ctx, res, runErr); err != nil {
		return res, err
	}
	return res, nil
}

// environ gives the program a minimal environment plus the requested vars.
func environ(extra map[string]string) []string {
	env := []string{"PATH=" + os.Getenv("PATH"), "HOME=" + os.TempDir(), "LANG=C.UTF-8"}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

var _ sandbox.Sandbox = (*Runner)(nil)

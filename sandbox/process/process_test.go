package process_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/sandbox"
	"github.com/kbukum/pipeflow/sandbox/process"
)

func newRunner() *process.Runner {
	cfg := sandbox.Config{}
	cfg.ApplyDefaults()
	return process.New(cfg, nil)
}

func TestRunShell(t *testing.T) {
	res, err := newRunner().Run(context.Background(), sandbox.Request{
		Language: "shell",
		Source:   `echo "hello $NAME"`,
		Env:      map[string]string{"NAME": "world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if out := strings.TrimSpace(res.Stdout); out != "hello world" {
		t.Fatalf("expected 'hello world', got %q", out)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := newRunner().Run(context.Background(), sandbox.Request{
		Language: "shell",
		Source:   "echo oops >&2; exit 42",
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if errors.KindOf(err) != errors.KindFatal {
		t.Errorf("expected fatal kind, got %s", errors.KindOf(err))
	}
	if res == nil || res.ExitCode != 42 {
		t.Fatalf("expected exit code 42, got %+v", res)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Errorf("expected stderr to be captured, got %q", res.Stderr)
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	_, err := newRunner().Run(context.Background(), sandbox.Request{
		Language: "shell",
		Source:   "sleep 10",
		Timeout:  100 * time.Millisecond,
	})
	if errors.KindOf(err) != errors.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("process not stopped promptly: %v", elapsed)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := newRunner().Run(ctx, sandbox.Request{Language: "shell", Source: "sleep 10"})
	if errors.KindOf(err) != errors.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	_, err := newRunner().Run(context.Background(), sandbox.Request{Language: "cobol", Source: "x"})
	if errors.KindOf(err) != errors.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

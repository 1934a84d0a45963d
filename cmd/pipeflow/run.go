package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipeflow/app"
	"github.com/kbukum/pipeflow/bootstrap"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/pipeline"
)

type runOptions struct {
	inputs []string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a pipeline definition once and print the final snapshot",
		Long: `Run loads a YAML or JSON pipeline definition, executes it to completion
and prints the execution snapshot as JSON. The exit status is 2 when the
execution does not complete.

Input values are decoded as YAML scalars, so --input n=3 passes a number and
--input name="'3'" a string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseInputs(ro.inputs)
			if err != nil {
				return err
			}
			p, err := pipeline.LoadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// stdout carries the snapshot.
			cfg.Logging.Output = "stderr"
			return runOnce(cmd.Context(), cfg, p, input, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&ro.inputs, "input", "i", nil, "input parameter as key=value (repeatable)")
	return cmd
}

func runOnce(ctx context.Context, cfg *app.Config, p *pipeline.Pipeline, input map[string]any, out io.Writer) error {
	a, err := bootstrap.NewApp(cfg, bootstrap.WithQuiet(), bootstrap.WithGracefulTimeout(app.ShutdownTimeout(cfg)))
	if err != nil {
		return err
	}
	rt, err := app.Wire(a)
	if err != nil {
		return err
	}

	var final *execution.Execution
	err = a.RunTask(ctx, func(ctx context.Context) error {
		id, err := rt.Engine.SubmitPipeline(ctx, p, input)
		if err != nil {
			return err
		}
		final, err = rt.Engine.Wait(ctx, id)
		if err != nil {
			// Interrupted: report where the execution got to.
			_ = rt.Engine.Cancel(id)
			final, _ = rt.Engine.GetStatus(id)
		}
		return err
	})
	if final != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(final); encErr != nil && err == nil {
			err = encErr
		}
	}
	if err != nil {
		return err
	}
	if final.Status != execution.StatusCompleted {
		return &exitError{code: 2}
	}
	return nil
}

// parseInputs turns key=value pairs into an input map. Values are decoded as
// YAML so numbers, booleans and flow collections keep their types.
func parseInputs(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: want key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		if v == nil && raw != "null" && raw != "~" {
			v = raw
		}
		input[key] = v
	}
	return input, nil
}

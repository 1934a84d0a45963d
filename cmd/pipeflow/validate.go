package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipeflow/app"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/pipeline"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check pipeline definitions without running them",
		Long: `Validate decodes each file and runs the checks a submission runs:
definition rules, the dependency graph and every handler's config check.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			engine, err := validator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close(context.Background())

			if failed := validateFiles(engine, args, cmd.OutOrStdout()); failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

// validator builds an engine that is only used for its submission checks.
func validator(ctx context.Context, cfg *app.Config) (*execution.Engine, error) {
	handlers, _, err := app.BuildHandlers(ctx, cfg, logger.Nop())
	if err != nil {
		return nil, err
	}
	return execution.New(cfg.Engine, handlers)
}

func validateFiles(engine *execution.Engine, paths []string, out io.Writer) int {
	failed := 0
	for _, path := range paths {
		p, err := pipeline.LoadFile(path)
		if err == nil {
			err = engine.Validate(p)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%s)\n", path, pipeline.RefOf(p.ID, p.Version))
	}
	return failed
}

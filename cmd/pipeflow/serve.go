package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipeflow/app"
	"github.com/kbukum/pipeflow/bootstrap"
	"github.com/kbukum/pipeflow/server"
	"github.com/kbukum/pipeflow/sse"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *app.Config) error {
	a, err := bootstrap.NewApp(cfg, bootstrap.WithGracefulTimeout(app.ShutdownTimeout(cfg)))
	if err != nil {
		return err
	}
	events := sse.NewComponent(a.Logger)
	if err := a.RegisterComponent(events); err != nil {
		return err
	}
	rt, err := app.Wire(a, sse.NewTracker(events.Hub()))
	if err != nil {
		return err
	}

	// Registered after Wire's callback, so the engine exists by now.
	a.OnConfigure(func(_ context.Context, a *bootstrap.App[*app.Config]) error {
		srv := server.New(a.Cfg.Server, a.Logger)
		srv.ApplyDefaults(a.Name, a.Components.HealthAll)
		server.NewAPI(rt.Engine, rt.Pipelines).
			WithEvents(events.Hub(), a.Logger).
			Register(srv.GinEngine())
		return a.RegisterComponent(server.NewComponent(srv))
	})

	return a.Run(ctx)
}

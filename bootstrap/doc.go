// Package bootstrap runs a pipeflow process through a uniform lifecycle.
//
// An App owns the typed config, the logger and a component.Registry. Run
// starts every component, runs the configure callbacks and hooks, prints a
// startup summary and blocks until SIGINT, SIGTERM or context cancellation.
// RunTask does the same for a finite task such as `pipeflow run`.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(db)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return nil
//	})
//	err = app.Run(ctx)
//
// Components stop in reverse registration order within the graceful timeout.
package bootstrap

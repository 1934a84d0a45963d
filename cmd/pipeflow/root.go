package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipeflow/app"
	"github.com/kbukum/pipeflow/config"
	"github.com/kbukum/pipeflow/version"
)

const serviceName = "pipeflow"

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Pipeline execution engine",
		Long: `pipeflow executes pipelines of LLM, code, file, HTTP, condition and
transform steps as a dependency graph.

Configuration is read from config.yml (or --config), an optional .env file
and PIPEFLOW_ environment variables, where a double underscore separates
sections:

  PIPEFLOW_ENGINE__MAX_CONCURRENCY=8 pipeflow serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "path to a .env file")

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the process config. Defaults and validation are applied by
// bootstrap.NewApp.
func (o *rootOptions) load() (*app.Config, error) {
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}

	cfg := &app.Config{}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	if cfg.Version == "" {
		cfg.Version = version.Version
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo().String())
		},
	}
}

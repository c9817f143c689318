package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/config"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "annealerd",
		Short: "Simulated annealing of guest molecules in porous frameworks",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			logger.SetDefault(logger.NewFormat(cfg.LogFormat, cfg.LogLevel, os.Stderr))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (ANNEAL_* variables override it)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newDefaultsCommand(),
	)
	return cmd
}

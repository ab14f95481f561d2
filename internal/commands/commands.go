// Package commands is the cartograph command tree.
package commands

import (
	"github.com/spf13/cobra"

	"cartograph/internal/config"
	"cartograph/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool
}

func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cartograph",
		Short:         "Journal storage and formatting service for canvas nodes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "TOML config file (defaults to $CARTOGRAPH_CONFIG)")
	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "log level override")
	cmd.PersistentFlags().BoolVar(&ro.pretty, "pretty", false, "human-readable logs")

	AddCommands(cmd, ro)
	return cmd
}

func AddCommands(topLevel *cobra.Command, ro *rootOptions) {
	addServe(topLevel, ro)
	addMigrate(topLevel, ro)
	addReindex(topLevel, ro)
	addJournal(topLevel, ro)
}

// load reads the configuration and sets up logging for a command.
func (ro *rootOptions) load() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if ro.configPath != "" {
		cfg, err = config.LoadFile(ro.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if ro.logLevel != "" {
		cfg.LogLevel = ro.logLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty || ro.pretty)
	return cfg, nil
}

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syssam/relkit/internal/cli"
	"github.com/syssam/relkit/subset"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg *cli.Config

	// Persistent flags.
	cfgFile string
	spec    string
	dialect string
	dsn     string
	debug   bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "relkit",
		Short: "Relational read and write helpers",
		Long: `relkit - subset specifications for relational databases

relkit validates subset specifications, prints the statements a subset
resolves to and runs them against a database.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, _, err := cli.LoadConfig(a.cfgFile)
			if err != nil {
				return cli.ConfigError("loading configuration", err)
			}
			// Flags win over the environment and the config file.
			flags := cmd.Flags()
			if flags.Changed("spec") {
				cfg.Spec = a.spec
			}
			if flags.Changed("dialect") {
				cfg.Database.Dialect = a.dialect
			}
			if flags.Changed("dsn") {
				cfg.Database.DSN = a.dsn
			}
			cfg.Database.Debug = cfg.Database.Debug || a.debug
			a.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: auto-discover relkit.yaml)")
	pf.StringVar(&a.spec, "spec", "", "subset specification file")
	pf.StringVar(&a.dialect, "dialect", "", "SQL dialect: postgres, mysql or sqlite")
	pf.StringVar(&a.dsn, "dsn", "", "database connection string")
	pf.BoolVar(&a.debug, "debug", false, "log every statement")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "print statement counters")

	root.AddCommand(
		newCheckCmd(a),
		newExplainCmd(a),
		newResolveCmd(a),
	)
	return root
}

// loadSpec reads and validates the configured specification file.
func (a *app) loadSpec() (*subset.Config, error) {
	cfg, err := subset.LoadFile(a.cfg.Spec)
	if err != nil {
		return nil, cli.SpecError("invalid specification "+a.cfg.Spec, err)
	}
	return cfg, nil
}

func (a *app) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if a.cfg.Database.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

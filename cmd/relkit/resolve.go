package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/internal/cli"
	"github.com/syssam/relkit/subset"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		lf   listFlags
		find string
	)
	cmd := &cobra.Command{
		Use:   "resolve <entity> <subset>",
		Short: "Resolve a subset against a database and print JSON",
		Long: `Resolve a subset against a database and print the result as JSON.

Virtual fields are left unset: their hooks are Go code registered by the
application.`,
		Example: `  relkit resolve company tree --dialect sqlite --dsn file:app.db
  relkit resolve employee detail --find 42 -v`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadSpec()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := a.logger(cmd.ErrOrStderr())
			c, err := a.open(ctx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = c.close() }()

			r, err := subset.NewResolver(c.db, cfg,
				subset.WithLogger(logger),
				subset.WithConcurrency(a.cfg.Resolve.Concurrency),
				subset.WithVirtuals(virtualStubs(cfg)),
			)
			if err != nil {
				return cli.SpecError("building resolver", err)
			}
			var out any
			if find != "" {
				row, err := r.Find(ctx, args[0], args[1], parseValue(find))
				if err != nil {
					return resolveError(err)
				}
				out = row
			} else {
				res, err := r.Resolve(ctx, args[0], args[1], lf.params(), nil)
				if err != nil {
					return resolveError(err)
				}
				out = res
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if a.verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), c.stats.QueryStats().Stats())
			}
			return nil
		},
	}
	lf.register(cmd.Flags())
	cmd.Flags().StringVar(&find, "find", "", "return the single row with this id")
	return cmd
}

func resolveError(err error) error {
	switch {
	case relkit.IsBadRequest(err), relkit.IsNotFound(err):
		return cli.GeneralError("resolve", err)
	case relkit.IsQueryError(err):
		return cli.DBError("resolve", err)
	default:
		return err
	}
}

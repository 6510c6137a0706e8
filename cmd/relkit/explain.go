package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/relkit/internal/cli"
	"github.com/syssam/relkit/subset"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		lf       listFlags
		asJSON   bool
		withArgs bool
	)
	cmd := &cobra.Command{
		Use:   "explain <entity> <subset>",
		Short: "Print the statements a subset resolves to",
		Long: `Print the statements a resolve call runs, without connecting to a database.

Loader statements are printed once per loader, with :keys standing for the
parent keys collected from the previous level.`,
		Example: `  relkit explain employee detail --dialect postgres
  relkit explain employee list --keyword ann --order-by name-desc --page 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadSpec()
			if err != nil {
				return err
			}
			r, err := subset.NewResolver(a.offline(), cfg, subset.WithVirtuals(virtualStubs(cfg)))
			if err != nil {
				return cli.SpecError("building resolver", err)
			}
			plan, err := r.Explain(args[0], args[1], lf.params(), nil)
			if err != nil {
				return cli.GeneralError("explaining "+args[0]+"/"+args[1], err)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			if plan.Count != nil {
				printStatement(w, *plan.Count, withArgs)
			}
			printStatement(w, plan.Select, withArgs)
			for _, st := range plan.Loaders {
				printStatement(w, st, withArgs)
			}
			return nil
		},
	}
	lf.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	cmd.Flags().BoolVar(&withArgs, "args", false, "print placeholders and arguments instead of inlined values")
	return cmd
}

func printStatement(w io.Writer, st subset.Statement, withArgs bool) {
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w, "-- %s\n", st.Label)
	if withArgs {
		fmt.Fprintln(w, st.Query)
		if len(st.Args) > 0 {
			fmt.Fprintf(w, "-- args: %v\n", st.Args)
		}
		return
	}
	fmt.Fprintln(w, st.Debug)
}

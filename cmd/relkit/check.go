package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/relkit/subset"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a subset specification",
		Example: `  # Validate the file named in relkit.yaml
  relkit check

  # Validate a specific file
  relkit check --spec config/subsets.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadSpec()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen, color.Bold)
			bold := color.New(color.Bold)
			green.Fprint(w, "✓ ")
			fmt.Fprintf(w, "%s is valid: %d entities\n", a.cfg.Spec, len(cfg.Entities))
			for _, name := range slices.Sorted(maps.Keys(cfg.Entities)) {
				e := cfg.Entities[name]
				fmt.Fprintf(w, "  %s (table %s)\n", bold.Sprint(name), e.Table)
				for _, sn := range slices.Sorted(maps.Keys(e.Subsets)) {
					s := e.Subsets[sn]
					fmt.Fprintf(w, "    - %s: %d columns, %d joins, %d loaders, %d virtual\n",
						sn, len(s.Select), len(s.Joins), countLoaders(s.Loaders), len(s.Virtual))
				}
			}
			return nil
		},
	}
}

func countLoaders(ls []subset.Loader) int {
	n := len(ls)
	for _, l := range ls {
		n += countLoaders(l.Loaders)
	}
	return n
}

// Command relkit checks subset specifications and runs them.
//
// Usage:
//
//	relkit check   [--spec subsets.yaml]
//	relkit explain <entity> <subset> [list flags]
//	relkit resolve <entity> <subset> [list flags] --dsn <dsn>
//
// Settings are read from flags, RELKIT_* environment variables and an
// optional relkit.yaml found in the working directory or one of its parents.
package main

import (
	"context"
	"io"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/relkit/internal/cli"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return cli.PrintError(stderr, err)
	}
	return cli.ExitSuccess
}

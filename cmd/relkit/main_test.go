package main

import (
	"bytes"
	"context"
	stdsql "database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relkit/internal/cli"
)

const testSpec = `
entities:
  company:
    search: [name]
    default_search: name
    default_order: name-asc
    subsets:
      tree:
        select: [name]
        virtual: [score]
        loaders:
          - as: departments
            table: departments
            many_join:
              to: company_id
            select: [name]
            order_by: name-asc
`

func init() {
	color.NoColor = true
}

// setup writes a config and a spec file to a temporary directory and returns
// the flags pointing at them.
func setup(t *testing.T, spec string) (dir string, flags []string) {
	t.Helper()
	dir = t.TempDir()
	specPath := filepath.Join(dir, "subsets.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))
	cfgPath := filepath.Join(dir, "relkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  dialect: postgres\n"), 0o644))
	return dir, []string{"--config", cfgPath, "--spec", specPath}
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCheck(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, testSpec)
	code, out, errOut := execute(t, append([]string{"check"}, flags...)...)
	require.Equal(t, cli.ExitSuccess, code, errOut)
	assert.Contains(t, out, "is valid: 1 entities")
	assert.Contains(t, out, "company (table companies)")
	assert.Contains(t, out, "- tree: 1 columns, 0 joins, 1 loaders, 1 virtual")
}

func TestCheck_Invalid(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, `
entities:
  company:
    subsets:
      tree:
        joins:
          - {as: owner, table: users, from: owner_id, to: id}
          - {as: owner, table: users, from: owner_id, to: id}
`)
	code, out, errOut := execute(t, append([]string{"check"}, flags...)...)
	assert.Equal(t, cli.ExitSpec, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Error: invalid specification")
	assert.Contains(t, errOut, "company/tree")
}

func TestCheck_BadConfig(t *testing.T) {
	t.Parallel()
	code, _, errOut := execute(t, "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, cli.ExitConfig, code)
	assert.Contains(t, errOut, "config file not found")
}

func TestExplain(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, testSpec)
	code, out, errOut := execute(t, append([]string{"explain", "company", "tree", "--keyword", "ac"}, flags...)...)
	require.Equal(t, cli.ExitSuccess, code, errOut)
	assert.Contains(t, out, "-- count\n")
	assert.Contains(t, out, "-- select\n")
	assert.Contains(t, out, `LOWER("companies"."name") LIKE '%ac%'`)
	assert.Contains(t, out, `FROM "companies" WHERE LOWER("companies"."name") LIKE '%ac%' ORDER BY "companies"."name" ASC LIMIT 24`)
	assert.Contains(t, out, "-- departments\n")
	assert.Contains(t, out, `WHERE "departments"."company_id" IN (:keys) ORDER BY "departments"."name" ASC`)
}

func TestExplain_JSON(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, testSpec)
	args := append([]string{"explain", "company", "tree", "--json", "--without-count", "--dialect", "mysql", "--num", "5", "--page", "3"}, flags...)
	code, out, errOut := execute(t, args...)
	require.Equal(t, cli.ExitSuccess, code, errOut)
	var plan struct {
		Count  any `json:"count"`
		Select struct {
			Query string `json:"query"`
		} `json:"select"`
		Loaders []struct {
			Label string `json:"label"`
		} `json:"loaders"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Nil(t, plan.Count)
	assert.Contains(t, plan.Select.Query, "FROM `companies` ORDER BY `companies`.`name` ASC LIMIT 5 OFFSET 10")
	require.Len(t, plan.Loaders, 1)
	assert.Equal(t, "departments", plan.Loaders[0].Label)
}

func TestExplain_Errors(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, testSpec)
	code, _, errOut := execute(t, append([]string{"explain", "company", "missing"}, flags...)...)
	assert.Equal(t, cli.ExitGeneral, code)
	assert.Contains(t, errOut, `unknown subset "missing"`)

	code, _, errOut = execute(t, append([]string{"explain", "company", "tree", "--order-by", "name-sideways"}, flags...)...)
	assert.Equal(t, cli.ExitGeneral, code)
	assert.Contains(t, errOut, "orderBy")

	code, _, _ = execute(t, append([]string{"explain", "company"}, flags...)...)
	assert.Equal(t, cli.ExitGeneral, code)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	dir, flags := setup(t, testSpec)
	dsn := filepath.Join(dir, "app.db")
	db, err := stdsql.Open("sqlite", dsn)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE companies (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE departments (id INTEGER PRIMARY KEY, name TEXT NOT NULL, company_id INTEGER NOT NULL)`,
		`INSERT INTO companies (id, name) VALUES (1, 'Globex'), (2, 'Acme')`,
		`INSERT INTO departments (id, name, company_id) VALUES (1, 'Ops', 2), (2, 'Eng', 2)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	flags = append(flags, "--dialect", "sqlite", "--dsn", dsn)
	code, out, errOut := execute(t, append([]string{"resolve", "company", "tree", "-v"}, flags...)...)
	require.Equal(t, cli.ExitSuccess, code, errOut)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]any{
		"total": float64(2),
		"rows": []any{
			map[string]any{
				"id":   float64(2),
				"name": "Acme",
				"departments": []any{
					map[string]any{"id": float64(2), "name": "Eng"},
					map[string]any{"id": float64(1), "name": "Ops"},
				},
			},
			map[string]any{"id": float64(1), "name": "Globex", "departments": []any{}},
		},
	}, res)
	assert.Contains(t, errOut, "queries=3")

	code, out, errOut = execute(t, append([]string{"resolve", "company", "tree", "--find", "1"}, flags...)...)
	require.Equal(t, cli.ExitSuccess, code, errOut)
	assert.JSONEq(t, `{"id": 1, "name": "Globex", "departments": []}`, out)

	code, _, errOut = execute(t, append([]string{"resolve", "company", "tree", "--find", "99"}, flags...)...)
	assert.Equal(t, cli.ExitGeneral, code)
	assert.Contains(t, errOut, "not found")
}

func TestResolve_RequiresDSN(t *testing.T) {
	t.Parallel()
	_, flags := setup(t, testSpec)
	code, _, errOut := execute(t, append([]string{"resolve", "company", "tree"}, flags...)...)
	assert.Equal(t, cli.ExitConfig, code)
	assert.Contains(t, errOut, "database.dsn is required")
}

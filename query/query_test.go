package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

func openSQLite(t *testing.T) *query.DB {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE companies (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, role TEXT, age INTEGER, company_id INTEGER REFERENCES companies(id))`,
		`INSERT INTO companies (id, name) VALUES (1, 'Acme'), (2, 'Globex')`,
		`INSERT INTO users (id, name, role, age, company_id) VALUES
			(1, 'ann', 'admin', 30, 1),
			(2, 'bob', 'staff', 25, 1),
			(3, 'cid', 'staff', 41, 2),
			(4, 'dan', NULL, 19, NULL)`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	return query.New(drv)
}

func TestBuilder_Immutable(t *testing.T) {
	t.Parallel()
	db := query.New(sql.OpenDB(dialect.Postgres, nil))
	base := db.Table("users").Columns("id")
	filtered := base.Where(sql.EQ("role", "admin"))
	paged := filtered.OrderBy("id", query.Desc).Limit(10).Offset(20)

	q, _ := base.Query()
	assert.Equal(t, `SELECT "id" FROM "users"`, q)
	q, args := filtered.Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "role" = $1`, q)
	assert.Equal(t, []any{"admin"}, args)
	q, _ = paged.Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "role" = $1 ORDER BY "id" DESC LIMIT 10 OFFSET 20`, q)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "role" = 'admin' ORDER BY "id" DESC LIMIT 10 OFFSET 20`, paged.Debug())
}

func TestInterpolate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect string
		query   string
		args    []any
		want    string
	}{
		{
			name:    "value containing a placeholder",
			dialect: dialect.Postgres,
			query:   `SELECT $1, $2`,
			args:    []any{"a$2", 3},
			want:    `SELECT 'a$2', 3`,
		},
		{
			name:    "two digit index",
			dialect: dialect.Postgres,
			query:   `IN ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			args:    []any{1, 2, 3, 4, 5, 6, 7, 8, 9, "x"},
			want:    `IN (1, 2, 3, 4, 5, 6, 7, 8, 9, 'x')`,
		},
		{
			name:    "unknown index and bare dollar",
			dialect: dialect.Postgres,
			query:   `SELECT $1, $3, '$'`,
			args:    []any{nil},
			want:    `SELECT NULL, $3, '$'`,
		},
		{
			name:    "question marks",
			dialect: dialect.MySQL,
			query:   "SELECT ?, ?",
			args:    []any{"it's?", true},
			want:    "SELECT 'it''s?', TRUE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, query.Interpolate(tt.dialect, tt.query, tt.args))
		})
	}
}

func TestBuilder_WhereGroup(t *testing.T) {
	t.Parallel()
	db := query.New(sql.OpenDB(dialect.MySQL, nil))
	b := db.Table("users").Columns("id").
		Where(sql.EQ("active", true)).
		WhereGroup(func(g *query.Group) {
			g.Where(sql.EQ("role", "admin")).
				OrGroup(func(g *query.Group) {
					g.Where(sql.EQ("role", "staff")).WhereIn("team", 1, 2)
				})
		})
	q, args := b.Query()
	assert.Equal(t, "SELECT `id` FROM `users` WHERE (`active` = ?) AND ((`role` = ?) OR ((`role` = ?) AND (`team` IN (?, ?))))", q)
	assert.Equal(t, []any{true, "admin", "staff", 1, 2}, args)
	assert.Equal(t, "SELECT `id` FROM `users` WHERE (`active` = TRUE) AND ((`role` = 'admin') OR ((`role` = 'staff') AND (`team` IN (1, 2))))", b.Debug())
}

func TestBuilder_Subqueries(t *testing.T) {
	t.Parallel()
	db := query.New(sql.OpenDB(dialect.Postgres, nil))
	counts := db.Table("users").
		Columns("company_id").
		Select(query.Count().As("n")).
		Where(sql.GT("age", 18)).
		GroupBy("company_id")
	b := db.TableAs("companies", "c").
		Columns("c.name", "uc.n").
		LeftJoin(counts.As("uc"), "c.id", "uc.company_id").
		Where(sql.EQ("c.name", "Acme"))
	q, args := b.Query()
	assert.Equal(t, `SELECT "c"."name", "uc"."n" FROM "companies" AS "c" LEFT JOIN (SELECT "company_id", COUNT(*) AS "n" FROM "users" WHERE "age" > $1 GROUP BY "company_id") AS "uc" ON "c"."id" = "uc"."company_id" WHERE "c"."name" = $2`, q)
	assert.Equal(t, []any{18, "Acme"}, args)

	outer := db.FromSubquery(counts, "t").Columns("t.n").Where(sql.GTE("t.n", 2))
	q, args = outer.Query()
	assert.Equal(t, `SELECT "t"."n" FROM (SELECT "company_id", COUNT(*) AS "n" FROM "users" WHERE "age" > $1 GROUP BY "company_id") AS "t" WHERE "t"."n" >= $2`, q)
	assert.Equal(t, []any{18, 2}, args)
}

func TestBuilder_Execute(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	t.Run("All", func(t *testing.T) {
		rows, err := db.Table("users").Columns("id", "name").Where(sql.EQ("role", "staff")).OrderBy("id", query.Asc).All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []query.Row{{"id": int64(2), "name": "bob"}, {"id": int64(3), "name": "cid"}}, rows)
	})

	t.Run("First", func(t *testing.T) {
		row, err := db.Table("users").Columns("name").OrderBy("age", query.Desc).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "cid", row["name"])

		_, err = db.Table("users").Where(sql.EQ("id", 99)).First(ctx)
		assert.True(t, relkit.IsNotFound(err))
	})

	t.Run("Count", func(t *testing.T) {
		n, err := db.Table("users").Where(sql.NotNull("role")).OrderBy("id", query.Asc).Limit(1).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = db.Table("users").Columns("role").Where(sql.NotNull("role")).GroupBy("role").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("TypedExpressions", func(t *testing.T) {
		rows, err := db.Table("users").
			Select(
				query.Count().As("n"),
				query.RawNumber("AVG(age)").As("avg_age"),
				query.RawNumber("SUM(age)").As("sum_age"),
				query.RawString("MAX(?)", 7).As("label"),
			).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(4), rows[0]["n"])
		assert.Equal(t, 28.75, rows[0]["avg_age"])
		assert.Equal(t, int64(115), rows[0]["sum_age"])
		assert.Equal(t, "7", rows[0]["label"])
	})

	t.Run("Join", func(t *testing.T) {
		rows, err := db.TableAs("users", "u").
			Select(query.Col("u.name"), query.ColAs("c.name", "company")).
			Join(sql.Table("companies").As("c"), "u.company_id", "c.id").
			Where(sql.EQ("c.name", "Globex")).
			All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []query.Row{{"name": "cid", "company": "Globex"}}, rows)
	})

	t.Run("InvalidDirection", func(t *testing.T) {
		_, err := db.Table("users").OrderBy("id", "sideways").All(ctx)
		require.Error(t, err)
	})

	t.Run("EngineError", func(t *testing.T) {
		_, err := db.Table("missing").All(ctx)
		require.Error(t, err)
		assert.True(t, relkit.IsQueryError(err))
	})
}

func TestDB_Transaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db := openSQLite(t)
		err := db.Transaction(ctx, func(ctx context.Context, tx *query.DB) error {
			assert.True(t, tx.InTx())
			_, err := tx.Exec(ctx, tx.SQL().Insert("companies").Columns("name").Values("Initech"))
			return err
		})
		require.NoError(t, err)
		n, err := db.Table("companies").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db := openSQLite(t)
		cause := errors.New("stop")
		err := db.Transaction(ctx, func(ctx context.Context, tx *query.DB) error {
			if _, err := tx.Exec(ctx, tx.SQL().Delete("users")); err != nil {
				return err
			}
			return cause
		})
		require.ErrorIs(t, err, cause)
		n, err := db.Table("users").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("RollbackOnPanic", func(t *testing.T) {
		db := openSQLite(t)
		assert.PanicsWithValue(t, "boom", func() {
			_ = db.Transaction(ctx, func(ctx context.Context, tx *query.DB) error {
				_, _ = tx.Exec(ctx, tx.SQL().Delete("users"))
				panic("boom")
			})
		})
		n, err := db.Table("users").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("Nested", func(t *testing.T) {
		db := openSQLite(t)
		err := db.Transaction(ctx, func(ctx context.Context, tx *query.DB) error {
			return tx.Transaction(ctx, func(context.Context, *query.DB) error { return nil })
		})
		require.ErrorIs(t, err, relkit.ErrTxStarted)
	})

	t.Run("RollbackFailure", func(t *testing.T) {
		mdb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mdb.Close()
		db := query.New(sql.OpenDB(dialect.Postgres, mdb))
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("connection lost"))
		cause := errors.New("stop")
		err = db.Transaction(ctx, func(context.Context, *query.DB) error { return cause })
		var rerr *relkit.RollbackError
		require.ErrorAs(t, err, &rerr)
		assert.ErrorIs(t, err, cause)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

package sql

import (
	"testing"

	"github.com/syssam/relkit/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "select all",
			input:     Dialect(dialect.Postgres).Select().From(Table("users")),
			wantQuery: `SELECT * FROM "users"`,
		},
		{
			name: "select where",
			input: Dialect(dialect.Postgres).Select("id", "name").
				From(Table("users")).
				Where(And(EQ("active", true), In("role", "admin", "staff"))),
			wantQuery: `SELECT "id", "name" FROM "users" WHERE ("active" = $1) AND ("role" IN ($2, $3))`,
			wantArgs:  []any{true, "admin", "staff"},
		},
		{
			name: "mysql quoting",
			input: Dialect(dialect.MySQL).Select("u.id").
				From(Table("users").As("u")).
				Where(EQ("u.name", "a")),
			wantQuery: "SELECT `u`.`id` FROM `users` AS `u` WHERE `u`.`name` = ?",
			wantArgs:  []any{"a"},
		},
		{
			name: "joins",
			input: Dialect(dialect.SQLite).Select("users.id", "d.name").
				AppendSelectAs("c.name", "d__c__name").
				From(Table("users")).
				Join(Table("departments").As("d")).On("users.department_id", "d.id").
				LeftJoin(Table("companies").As("c")).On("d.company_id", "c.id"),
			wantQuery: `SELECT "users"."id", "d"."name", "c"."name" AS "d__c__name" FROM "users" JOIN "departments" AS "d" ON "users"."department_id" = "d"."id" LEFT JOIN "companies" AS "c" ON "d"."company_id" = "c"."id"`,
		},
		{
			name: "group having order limit offset",
			input: Dialect(dialect.Postgres).Select("role").
				AppendSelectExprAs(Raw("COUNT(*)"), "n").
				From(Table("users")).
				GroupBy("role").
				Having(ExprP("COUNT(*) > ?", 2)).
				OrderByDesc("n").
				OrderBy("role").
				Limit(10).
				Offset(20),
			wantQuery: `SELECT "role", COUNT(*) AS "n" FROM "users" GROUP BY "role" HAVING COUNT(*) > $1 ORDER BY "n" DESC, "role" ASC LIMIT 10 OFFSET 20`,
			wantArgs:  []any{2},
		},
		{
			name:      "sqlite offset without limit",
			input:     Dialect(dialect.SQLite).Select("id").From(Table("users")).Offset(5),
			wantQuery: `SELECT "id" FROM "users" LIMIT -1 OFFSET 5`,
		},
		{
			name: "subquery source",
			input: Dialect(dialect.Postgres).Select("t.role").
				From(Dialect(dialect.Postgres).Select("role").From(Table("users")).Where(EQ("active", true)).As("t")).
				Where(NEQ("t.role", "guest")),
			wantQuery: `SELECT "t"."role" FROM (SELECT "role" FROM "users" WHERE "active" = $1) AS "t" WHERE "t"."role" <> $2`,
			wantArgs:  []any{true, "guest"},
		},
		{
			name: "in subquery",
			input: Dialect(dialect.Postgres).Select("id").
				From(Table("users")).
				Where(And(EQ("a", 1), In("id", Select("user_id").From(Table("admins")).Where(EQ("level", 3))))),
			wantQuery: `SELECT "id" FROM "users" WHERE ("a" = $1) AND ("id" IN (SELECT "user_id" FROM "admins" WHERE "level" = $2))`,
			wantArgs:  []any{1, 3},
		},
		{
			name:      "empty in",
			input:     Dialect(dialect.MySQL).Select("id").From(Table("users")).Where(In("id")),
			wantQuery: "SELECT `id` FROM `users` WHERE 1 = 0",
		},
		{
			name: "or not nulls",
			input: Dialect(dialect.SQLite).Select("id").From(Table("users")).
				Where(Or(IsNull("deleted_at"), Not(NotNull("email")), ContainsFold("name", "AnN"))),
			wantQuery: `SELECT "id" FROM "users" WHERE ("deleted_at" IS NULL) OR (NOT ("email" IS NOT NULL)) OR (LOWER("name") LIKE ?)`,
			wantArgs:  []any{"%ann%"},
		},
		{
			name: "insert returning",
			input: Dialect(dialect.Postgres).Insert("users").
				Columns("name", "age").
				Values("a", 1).
				Values("b", 2).
				Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2), ($3, $4) RETURNING "id"`,
			wantArgs:  []any{"a", 1, "b", 2},
		},
		{
			name:      "insert returning ignored on mysql",
			input:     Dialect(dialect.MySQL).Insert("users").Columns("name").Values("a").Returning("id"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?)",
			wantArgs:  []any{"a"},
		},
		{
			name:      "insert default values",
			input:     Dialect(dialect.SQLite).Insert("users").Returning("id"),
			wantQuery: `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`,
		},
		{
			name: "upsert postgres",
			input: Dialect(dialect.Postgres).Insert("users").
				Columns("id", "name").
				Values(1, "a").
				OnConflict([]string{"id"}, "name"),
			wantQuery: `INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name"`,
			wantArgs:  []any{1, "a"},
		},
		{
			name: "upsert do nothing",
			input: Dialect(dialect.SQLite).Insert("tags").
				Columns("id").
				Values(1).
				OnConflict([]string{"id"}),
			wantQuery: `INSERT INTO "tags" ("id") VALUES (?) ON CONFLICT ("id") DO NOTHING`,
			wantArgs:  []any{1},
		},
		{
			name: "upsert mysql",
			input: Dialect(dialect.MySQL).Insert("users").
				Columns("id", "name").
				Values(1, "a").
				OnConflict([]string{"id"}, "name"),
			wantQuery: "INSERT INTO `users` (`id`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
			wantArgs:  []any{1, "a"},
		},
		{
			name: "update with case",
			input: Dialect(dialect.Postgres).Update("users").
				Set("name", Case().When(EQ("id", 1), "a").When(EQ("id", 2), "b").ElseColumn("name")).
				Set("age", 3).
				Where(In("id", 1, 2)),
			wantQuery: `UPDATE "users" SET "name" = CASE WHEN "id" = $1 THEN $2 WHEN "id" = $3 THEN $4 ELSE "name" END, "age" = $5 WHERE "id" IN ($6, $7)`,
			wantArgs:  []any{1, "a", 2, "b", 3, 1, 2},
		},
		{
			name:      "delete",
			input:     Dialect(dialect.MySQL).Delete("users").Where(And(EQ("a", 1), NotIn("id", 2, 3))),
			wantQuery: "DELETE FROM `users` WHERE (`a` = ?) AND (`id` NOT IN (?, ?))",
			wantArgs:  []any{1, 2, 3},
		},
		{
			name:      "raw expression",
			input:     Expr("COALESCE(?, ?)", 1, 2),
			wantQuery: "COALESCE(?, ?)",
			wantArgs:  []any{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelector_Clone(t *testing.T) {
	t.Parallel()
	base := Dialect(dialect.Postgres).Select("id").From(Table("users")).Where(EQ("a", 1))
	clone := base.Clone().Where(EQ("b", 2)).OrderBy("id").Limit(3)

	query, _ := base.Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "a" = $1`, query)
	query, args := clone.Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("a" = $1) AND ("b" = $2) ORDER BY "id" ASC LIMIT 3`, query)
	assert.Equal(t, []any{1, 2}, args)

	assert.Equal(t, []string{"id"}, clone.SelectedColumns())
	clone.ClearOrder()
	query, _ = clone.Query()
	assert.NotContains(t, query, "LIMIT")
}

func TestSelector_Errors(t *testing.T) {
	t.Parallel()
	require.Error(t, Select("id").Err(), "missing FROM")
	require.Error(t, Select("id").From(Select("id").From(Table("t"))).Err(), "subquery without alias")
	require.Error(t, Select().From(Table("t")).Where(ExprP("a = ? AND b = ?", 1)).Err(), "placeholder mismatch")
	require.NoError(t, Select().From(Table("t")).Err())
}

func TestBuilder_Ident(t *testing.T) {
	t.Parallel()
	b := NewBuilder(dialect.Postgres)
	b.Ident("t.c").WriteString(", ").Ident("t.*").WriteString(", ").Ident("COUNT(*)").WriteString(", ").Ident(`we"ird`)
	assert.Equal(t, `"t"."c", "t".*, COUNT(*), we"ird`, b.String())
	assert.Equal(t, "`a``b`", NewBuilder(dialect.MySQL).Quote("a`b"))
	assert.Equal(t, `"a""b"`, NewBuilder(dialect.SQLite).Quote(`a"b`))
}

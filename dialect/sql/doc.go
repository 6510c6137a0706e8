// Package sql implements relkit's SQL driver and statement builders.
//
// # Driver
//
// Driver wraps a database/sql pool and implements dialect.Driver. StatsDriver
// and DebugDriver wrap any dialect.Driver to count or log statements:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(nil))
//
// # Builders
//
// Statements are built with dialect-aware quoting and placeholders:
//
//	s := sql.Dialect(dialect.Postgres).
//	    Select("u.id", "u.name").
//	    From(sql.Table("users").As("u")).
//	    Where(sql.And(sql.EQ("u.active", true), sql.In("u.role", "admin", "staff"))).
//	    OrderBy("u.name").
//	    Limit(10)
//	query, args := s.Query()
//	// SELECT "u"."id", "u"."name" FROM "users" AS "u" WHERE ("u"."active" = $1) AND ("u"."role" IN ($2, $3)) ORDER BY "u"."name" ASC LIMIT 10
//
// Inserts support multi-row values, RETURNING and conflict handling:
//
//	sql.Dialect(dialect.Postgres).Insert("users").
//	    Columns("id", "name").
//	    Values(1, "a").
//	    OnConflict([]string{"id"}, "name")
//	// INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name"
//
// Updates accept CASE expressions for per-row values:
//
//	sql.Dialect(dialect.MySQL).Update("users").
//	    Set("name", sql.Case().When(sql.EQ("id", 1), "a").ElseColumn("name")).
//	    Where(sql.In("id", 1))
//
// Values are always bound as arguments and identifiers are always quoted.
// Raw fragments go through Expr, which binds its own "?" arguments.
package sql

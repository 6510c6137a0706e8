// Package relkit is a relational data-access kernel.
//
// Reads go through subset.Resolver, which turns a declarative subset
// specification (joins, eager-loaded relations and computed fields) into a
// bounded number of queries: one base query, one optional count query and one
// query per loader per nesting depth, whatever the page size.
//
// Writes go through upsert.Builder, which stages rows for several related
// tables with forward references and flushes them table by table inside one
// transaction.
//
// Both are built on the query package, an immutable fluent facade over the
// dialect/sql statement builders. This package holds the error types shared
// by all of them.
package relkit

// Package upsert stages writes to related tables and flushes them in one
// transaction.
//
// Register queues a row and returns a Ref standing for the id the row will
// get. Refs can be used as column values of other rows before any id exists.
// Upsert flushes one table: refs are replaced by the ids of the referenced
// table, which must have been flushed before by the same builder. The caller
// decides the flush order; a ref to an unflushed table fails with
// *relkit.UnresolvedReferenceError.
//
// UpdateBatch writes staged partial rows with one CASE based UPDATE per chunk.
// Prune removes stale many-to-many rows after a join table was upserted.
package upsert

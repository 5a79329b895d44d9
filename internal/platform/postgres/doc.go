// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in the store package.
//
// All stores accept a store.DBTX, so the same implementation runs against a
// *sql.DB or a *sql.Tx; WithTx rebinds a store to a transaction for use with
// store.RunInTransaction.
//
// Schema-level constraints carry the engine's invariants: the partial unique
// index on active (scope_id, fingerprint) pairs backs deduplication, and the
// unique (conflict_id, user_id) pair on notifications backs idempotent
// delivery. The stores translate the resulting constraint violations into
// the store package's sentinel errors rather than leaking driver errors.
package postgres

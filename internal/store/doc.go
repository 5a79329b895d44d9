// Package store defines the persistence interfaces consumed by the engine's
// services, together with the sentinel errors and transaction helpers shared
// by all implementations. Concrete PostgreSQL implementations live in
// internal/platform/postgres.
package store

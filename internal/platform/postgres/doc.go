// Package postgres provides the PostgreSQL implementations of the store
// interfaces. All stores accept a store.DBTX, so the same code runs
// against the connection pool or inside a transaction via WithTx.
package postgres

// Package database provides the PostgreSQL connection pool for the
// time-series sample store.
package database

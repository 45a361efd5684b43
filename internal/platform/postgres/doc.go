// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx driver, and owns the embedded goose migrations
// that create the profiles, avatars and tasks tables.
package postgres

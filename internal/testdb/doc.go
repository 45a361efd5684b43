// Package testdb connects integration tests to a PostgreSQL database,
// migrates it with the embedded schema and isolates each test in a
// transaction that is rolled back afterwards.
//
// Tests using it carry the integration build tag and are skipped when no
// database URL is configured.
package testdb

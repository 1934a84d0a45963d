// Package database provides a GORM-based database component with
// connection pooling, retrying connects, health checks and auto-migration.
// It supports the pure-Go SQLite driver for single-node deployments and
// PostgreSQL for shared ones; the SQL tracker backend is built on it.
package database

// Package stores provides the persistence layer for provisio. It includes
// SQLite-based storage with WAL mode, connection pooling, and CRUD
// operations for the history of resolution runs.
package stores

// Package store provides the data access layer for the autopilot service.
//
// One Store wraps the single rankpilot SQLite database holding sites,
// keywords, articles, and scheduled runs. All timestamps are unix
// milliseconds; pipeline and scheduling columns use NULL (not empty
// strings or zero) to mean "absent".
package store

import "database/sql"

// Store wraps the rankpilot database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

package repository

import "time"

// SQLiteOption applies a configuration option to the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMigrationsTable sets the table that records the applied schema version.
func WithMigrationsTable(name string) SQLiteOption {
	return func(s *SQLiteStore) {
		if name != "" {
			s.migrationsTable = name
		}
	}
}

package database

import "errors"

var (
	// ErrNoPath indicates the database path is empty.
	ErrNoPath = errors.New("database: path is empty")

	// ErrMigrationNotFound indicates an applied migration has no file.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration indicates a migration cannot be rolled back.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)

package storage

import (
	"database/sql"
	"fmt"

	applog "finify/internal/log"

	_ "github.com/lib/pq"
)

// NewPostgresRepository connects to dsn and brings the schema up to date.
func NewPostgresRepository(dsn string, logger *applog.Logger) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, postgresDialect, logger), nil
}

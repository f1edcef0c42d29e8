package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Open connects to Postgres through the pgx database/sql driver. Callers must
// import _ "github.com/jackc/pgx/v5/stdlib".
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}

	return db, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	_ "modernc.org/sqlite" // driver: sqlite
)

// NewSQLite opens the embedded SQLite database. SQLite allows one writer at a
// time, so the pool is pinned to a single connection and every store call is
// serialised through it.
func NewSQLite(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := OpenSQLite(ctx, cfg.SQLiteDSN)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("dsn", cfg.SQLiteDSN).
		Msg("SQLite opened")

	return db, nil
}

// OpenSQLite opens and pings a SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

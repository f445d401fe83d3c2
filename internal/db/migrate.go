package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// No unique index on email: uniqueness is a lookup-pattern concern
// (first match wins), mirroring the document-store driver.
const schema = `
CREATE TABLE IF NOT EXISTS builders (
	id        TEXT PRIMARY KEY,
	email     TEXT NOT NULL,
	full_name TEXT NOT NULL,
	join_date BIGINT NOT NULL,
	password  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_builders_email ON builders (email);
CREATE INDEX IF NOT EXISTS idx_builders_join_date ON builders (join_date DESC);
`

// EnsureSchema applies the idempotent DDL at startup.
func EnsureSchema(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, schema)

	return err
}

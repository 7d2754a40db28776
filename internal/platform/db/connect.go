// Package db opens the platformd database and ensures its schema. Local
// development defaults to sqlite; postgres is a DSN away.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:rosterdash.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/rosterdash?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	dbh, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := dbh.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, dbh, driver); err != nil {
		return nil, err
	}
	return dbh, nil
}

func ensureSchema(ctx context.Context, dbh *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := dbh.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS accounts (
  email TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  confirmed INTEGER NOT NULL DEFAULT 0,
  confirm_code TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
  token TEXT PRIMARY KEY,
  email TEXT NOT NULL REFERENCES accounts(email) ON DELETE CASCADE,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS client_sessions (
  fingerprint TEXT NOT NULL,
  domain TEXT NOT NULL,
  email TEXT NOT NULL REFERENCES accounts(email) ON DELETE CASCADE,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (fingerprint, domain)
);

CREATE TABLE IF NOT EXISTS roster_records (
  collection TEXT NOT NULL,   -- orgs|academicSessions|courses|users|classes|enrollments
  sourced_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT '', -- denormalized for the role filter on users
  data TEXT NOT NULL,            -- JSON body as served
  PRIMARY KEY (collection, sourced_id)
);

CREATE TABLE IF NOT EXISTS assessment_tests (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  parts_json TEXT NOT NULL   -- part/section/item skeleton as served
);

CREATE TABLE IF NOT EXISTS assessment_items (
  id TEXT PRIMARY KEY,
  identifier TEXT NOT NULL,
  title TEXT NOT NULL,
  xml_key TEXT NOT NULL DEFAULT '',  -- blob key; empty means no content yet
  xml_hash TEXT NOT NULL DEFAULT ''
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS accounts (
  email TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  confirmed BOOLEAN NOT NULL DEFAULT FALSE,
  confirm_code TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
  token TEXT PRIMARY KEY,
  email TEXT NOT NULL REFERENCES accounts(email) ON DELETE CASCADE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS client_sessions (
  fingerprint TEXT NOT NULL,
  domain TEXT NOT NULL,
  email TEXT NOT NULL REFERENCES accounts(email) ON DELETE CASCADE,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (fingerprint, domain)
);

CREATE TABLE IF NOT EXISTS roster_records (
  collection TEXT NOT NULL,
  sourced_id TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT '',
  data TEXT NOT NULL,
  PRIMARY KEY (collection, sourced_id)
);

CREATE TABLE IF NOT EXISTS assessment_tests (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  parts_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_items (
  id TEXT PRIMARY KEY,
  identifier TEXT NOT NULL,
  title TEXT NOT NULL,
  xml_key TEXT NOT NULL DEFAULT '',
  xml_hash TEXT NOT NULL DEFAULT ''
);
`

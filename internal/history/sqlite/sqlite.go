package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evanmar/deployr/internal/history"
)

// Store persists deploy records in a local SQLite database. It is the
// default history backend and the one the `history` command queries.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path. Empty path uses an
// in-memory database.
func New(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS deploy_history(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service TEXT NOT NULL,
		host TEXT NOT NULL,
		state TEXT NOT NULL,
		healthy INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		found INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_deploy_history_service ON deploy_history(service, id);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Store) Send(ctx context.Context, rec history.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deploy_history(service, host, state, healthy, attempts, found, started_at, finished_at, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.Service, rec.Host, rec.State, boolInt(rec.Healthy), rec.Attempts, boolInt(rec.Found),
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(), nullString(rec.Error))
	return err
}

// Recent returns up to limit records for service, newest first. An
// empty service returns records for all services.
func (s *Store) Recent(ctx context.Context, service string, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT service, host, state, healthy, attempts, found, started_at, finished_at, COALESCE(error,'')
		FROM deploy_history`
	args := make([]any, 0, 2)
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []history.Record
	for rows.Next() {
		var rec history.Record
		var healthy, found int
		var started, finished time.Time
		if err := rows.Scan(&rec.Service, &rec.Host, &rec.State, &healthy, &rec.Attempts, &found, &started, &finished, &rec.Error); err != nil {
			return nil, err
		}
		rec.Healthy = healthy != 0
		rec.Found = found != 0
		rec.StartedAt = started
		rec.FinishedAt = finished
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

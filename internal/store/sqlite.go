package store

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/lunchbot/internal/errors"
)

// SQLite persists the document tree in a single table of leaf rows
type SQLite struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLite opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for a throwaway database.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Unavailable("sqlite.open", err)
	}

	// A single connection serializes transactions, which is what Update relies on
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Unavailable("sqlite.migrate", err)
	}
	return s, nil
}

// migrate runs database migrations
func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, path string) (any, error) {
	path = Clean(path)
	rows, err := s.load(ctx, s.db, path)
	if err != nil {
		return nil, errors.Unavailable("sqlite.get", err)
	}
	return build(path, rows)
}

func (s *SQLite) Set(ctx context.Context, path string, value any) error {
	path = Clean(path)
	leaves, err := flatten(path, value)
	if err != nil {
		return errors.Wrap(err, errors.ErrValidation, "invalid document")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Unavailable("sqlite.set", err)
	}
	defer tx.Rollback()

	if err := s.write(ctx, tx, path, leaves); err != nil {
		return errors.Unavailable("sqlite.set", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Unavailable("sqlite.set", err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, path string, fn UpdateFunc) error {
	path = Clean(path)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Unavailable("sqlite.update", err)
	}
	defer tx.Rollback()

	rows, err := s.load(ctx, tx, path)
	if err != nil {
		return errors.Unavailable("sqlite.update", err)
	}
	current, err := build(path, rows)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	leaves, err := flatten(path, next)
	if err != nil {
		return errors.Wrap(err, errors.ErrValidation, "invalid document")
	}
	if err := s.write(ctx, tx, path, leaves); err != nil {
		return errors.Unavailable("sqlite.update", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Unavailable("sqlite.update", err)
	}
	return nil
}

// load returns the leaf rows at or below path
func (s *SQLite) load(ctx context.Context, q querier, path string) (map[string]string, error) {
	query := `SELECT path, value FROM documents`
	var args []any
	if path != "" {
		query += ` WHERE path = ? OR path LIKE ? ESCAPE '\'`
		args = append(args, path, escapeLike(path)+"/%")
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, v string
		if err := rows.Scan(&p, &v); err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, rows.Err()
}

// write replaces the subtree at path with leaves
func (s *SQLite) write(ctx context.Context, q querier, path string, leaves map[string]string) error {
	if path == "" {
		if _, err := q.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return err
		}
	} else {
		if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE path = ? OR path LIKE ? ESCAPE '\'`,
			path, escapeLike(path)+"/%"); err != nil {
			return err
		}
		for _, a := range ancestors(path) {
			if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, a); err != nil {
				return err
			}
		}
	}

	for p, v := range leaves {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO documents (path, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, p, v); err != nil {
			return err
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

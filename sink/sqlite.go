package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/use-agent/serpwalk/models"
)

// SQLite appends records to the records table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		followers TEXT NOT NULL DEFAULT '',
		following TEXT NOT NULL DEFAULT '',
		posts TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		engine TEXT NOT NULL DEFAULT '',
		processed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_query ON records(query);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Write(rec models.Record) error {
	query := `INSERT INTO records
		(query, url, followers, following, posts, bio, status, error, strategy, engine, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query,
		rec.Query, rec.URL,
		rec.Fields.Followers, rec.Fields.Following, rec.Fields.Posts, rec.Fields.Bio,
		string(rec.Status), rec.Error, rec.Strategy, rec.Engine,
		rec.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sink: insert record: %w", err)
	}
	return nil
}

// List returns the stored records for query, or all records when query is
// empty, oldest first. Limit 0 means no limit.
func (s *SQLite) List(ctx context.Context, query string, limit int) ([]models.Record, error) {
	stmt := `SELECT query, url, followers, following, posts, bio, status, error, strategy, engine, processed_at
		FROM records`
	var args []any
	if query != "" {
		stmt += " WHERE query = ?"
		args = append(args, query)
	}
	stmt += " ORDER BY id"
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sink: list records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var (
			rec       models.Record
			status    string
			processed string
		)
		if err := rows.Scan(&rec.Query, &rec.URL,
			&rec.Fields.Followers, &rec.Fields.Following, &rec.Fields.Posts, &rec.Fields.Bio,
			&status, &rec.Error, &rec.Strategy, &rec.Engine, &processed); err != nil {
			return nil, fmt.Errorf("sink: scan record: %w", err)
		}
		rec.Status = models.Status(status)
		rec.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processed)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

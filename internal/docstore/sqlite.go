package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, doc_id)
);`

// SQLite stores each document as a JSON body keyed by (collection, doc_id).
// Filters and ordering go through json_extract, so only top-level fields are
// addressable, which is all the port promises.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if merge {
		body, err = s.merged(ctx, collection, id, body)
		if err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO documents (collection, doc_id, body, updated_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (collection, doc_id)
        DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(body))
	return err
}

// merged overlays the new fields onto the stored body. Null overlay values
// delete the field, matching the delete-field sentinel of the upstream store.
func (s *SQLite) merged(ctx context.Context, collection, id string, overlay []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(overlay, &fields); err != nil {
		return nil, fmt.Errorf("merge requires an object body: %w", err)
	}

	existing, err := s.Get(ctx, collection, id)
	if errors.Is(err, ErrNotFound) {
		existing = []byte(`{}`)
	} else if err != nil {
		return nil, err
	}

	var base map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("stored document is not an object: %w", err)
	}

	for k, v := range fields {
		if string(v) == "null" {
			delete(base, k)
			continue
		}
		base[k] = v
	}

	return json.Marshal(base)
}

func (s *SQLite) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT body FROM documents WHERE collection = ?`)
	args := []any{collection}

	for _, f := range q.Filters {
		if !validField(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		fmt.Fprintf(&sb, ` AND json_extract(body, '$.%s') = ?`, f.Field)
		args = append(args, f.Value)
	}

	if q.OrderBy != "" {
		if !validField(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		fmt.Fprintf(&sb, ` ORDER BY json_extract(body, '$.%s')`, q.OrderBy)
		if q.Desc {
			sb.WriteString(` DESC`)
		}
	}

	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		docs = append(docs, body)
	}
	return docs, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id)
	return err
}

// validField permits the dotted-snake field names used internally. Field names
// are interpolated into json_extract paths, never user input.
func validField(f string) bool {
	if f == "" {
		return false
	}
	for _, r := range f {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

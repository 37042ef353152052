package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vizpilot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS request_records (
	request_id        TEXT PRIMARY KEY,
	parent_request_id TEXT,
	status            TEXT NOT NULL,
	error_code        TEXT,
	options_json      TEXT NOT NULL,
	response_json     TEXT NOT NULL,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_records_parent ON request_records(parent_request_id);
`

// Store is an embedded request record repository for single-node deployments
// and the CLI.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, rec domain.RequestRecord) error {
	if rec.RequestID == "" {
		return errors.New("request_id is required")
	}
	opts, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	resp, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_records (
			request_id, parent_request_id, status, error_code, options_json, response_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			status = excluded.status,
			error_code = excluded.error_code,
			options_json = excluded.options_json,
			response_json = excluded.response_json
	`,
		rec.RequestID, nullString(rec.ParentRequestID), string(rec.Status), nullString(string(rec.ErrorCode)),
		string(opts), string(resp), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save request record: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, requestID string) (domain.RequestRecord, error) {
	var (
		rec        domain.RequestRecord
		parent     sql.NullString
		status     string
		errorCode  sql.NullString
		opts, resp string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT request_id, parent_request_id, status, error_code, options_json, response_json, created_at
		FROM request_records WHERE request_id = ?
	`, requestID).Scan(&rec.RequestID, &parent, &status, &errorCode, &opts, &resp, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RequestRecord{}, fmt.Errorf("load request record: %w", err)
	}
	rec.ParentRequestID = parent.String
	rec.Status = domain.ResponseStatus(status)
	rec.ErrorCode = domain.ErrorCode(errorCode.String)
	if err := json.Unmarshal([]byte(opts), &rec.Options); err != nil {
		return domain.RequestRecord{}, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal([]byte(resp), &rec.Response); err != nil {
		return domain.RequestRecord{}, fmt.Errorf("decode response: %w", err)
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

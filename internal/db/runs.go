package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/shard"
)

// Run is one recorded split of an archive. It holds counts and shard file
// locations only, never conversation content.
type Run struct {
	ID            string       `json:"id"`
	InputPath     string       `json:"input_path"`
	OutputDir     string       `json:"output_dir"`
	MaxParts      int          `json:"max_parts"`
	Conversations int          `json:"conversations"`
	Messages      int          `json:"messages"`
	Skipped       int          `json:"skipped"`
	Shards        []shard.File `json:"shards"`
	CreatedAt     int64        `json:"created_at"`
}

const runColumns = `id, input_path, output_dir, max_parts, conversations,
	messages, skipped, shard_count, shards_json, created_at`

// InsertRun stores a new run.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	shards := r.Shards
	if shards == nil {
		shards = []shard.File{}
	}
	shardsJSON, err := json.Marshal(shards)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		r.ID, r.InputPath, r.OutputDir, r.MaxParts, r.Conversations,
		r.Messages, r.Skipped, len(shards), string(shardsJSON), r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	r, err := scanRun(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func ListRuns(ctx context.Context, db *sql.DB, limit, offset int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// CountRuns returns the number of recorded runs.
func CountRuns(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// DeleteRunsBefore removes runs created before the given Unix timestamp.
// Shard files on disk are left untouched.
func DeleteRunsBefore(ctx context.Context, db *sql.DB, before int64) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var shardCount int
	var shardsJSON string
	err := row.Scan(
		&r.ID, &r.InputPath, &r.OutputDir, &r.MaxParts, &r.Conversations,
		&r.Messages, &r.Skipped, &shardCount, &shardsJSON, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(shardsJSON), &r.Shards); err != nil {
		return nil, err
	}
	if r.Shards == nil {
		r.Shards = []shard.File{}
	}
	return &r, nil
}

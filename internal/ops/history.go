package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/chatsplit/internal/conversation"
	"github.com/hpungsan/chatsplit/internal/db"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/shard"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []*db.Run  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// History lists recorded runs, newest first.
func History(ctx context.Context, database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	runs, err := db.ListRuns(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountRuns(ctx, database)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

// ShowRun fetches a single recorded run.
func ShowRun(ctx context.Context, database *sql.DB, id string) (*db.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	return db.GetRun(ctx, database, id)
}

// ReadShardInput contains parameters for the ReadShard operation.
type ReadShardInput struct {
	RunID string
	Index int // 1-based
}

// ReadShardOutput is a recorded shard file read back from disk.
type ReadShardOutput struct {
	Run           *db.Run                          `json:"run"`
	Shard         shard.File                       `json:"shard"`
	Conversations []*conversation.FlatConversation `json:"conversations"`
}

// ReadShard loads one shard file of a recorded run.
func ReadShard(ctx context.Context, database *sql.DB, input ReadShardInput) (*ReadShardOutput, error) {
	run, err := ShowRun(ctx, database, input.RunID)
	if err != nil {
		return nil, err
	}

	if input.Index < 1 || input.Index > len(run.Shards) {
		return nil, errors.NewNotFound(fmt.Sprintf("%s shard %d", run.ID, input.Index))
	}
	f := run.Shards[input.Index-1]

	file, err := openArchive(f.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewIO("open shard", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIO("read shard", err)
	}

	var convs []*conversation.FlatConversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, errors.NewParse(f.Path, err)
	}

	return &ReadShardOutput{
		Run:           run,
		Shard:         f,
		Conversations: convs,
	}, nil
}

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays int // 0 purges every run
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge deletes ledger entries older than the given number of days.
// Shard files on disk are left alone.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}

	before := time.Now().Add(-time.Duration(input.OlderThanDays) * 24 * time.Hour).Unix()
	if input.OlderThanDays == 0 {
		// Inclusive of runs recorded this second.
		before++
	}

	count, err := db.DeleteRunsBefore(ctx, database, before)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count, olderThanDays int) string {
	if count == 0 {
		return "No runs to purge"
	}

	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}

	msg := fmt.Sprintf("Deleted %d %s from history", count, runWord)
	if olderThanDays > 0 {
		msg += fmt.Sprintf(" (recorded more than %d days ago)", olderThanDays)
	}
	return msg
}

// ParseAge parses a purge age such as "7d", "48h" or "14" (days) into whole days.
func ParseAge(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errors.NewInvalidRequest("age is required")
	}

	var days int
	if strings.HasSuffix(s, "h") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid age %q", s))
		}
		if d < 0 {
			return 0, errors.NewInvalidRequest("age must not be negative")
		}
		// Partial days round up; 0 days means purge everything.
		days = int((d + 24*time.Hour - 1) / (24 * time.Hour))
	} else {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid age %q", s))
		}
		days = n
	}

	if days < 0 {
		return 0, errors.NewInvalidRequest("age must not be negative")
	}
	return days, nil
}

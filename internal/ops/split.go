package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/db"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/logging"
)

// SplitOutput is a ProcessOutput plus the id of the recorded run.
type SplitOutput struct {
	RunID string `json:"run_id,omitempty"`
	*ProcessOutput
}

// Split runs Process and records the run in the ledger.
// A nil database skips the ledger.
func Split(ctx context.Context, database *sql.DB, log *zap.Logger, cfg *config.Config, input ProcessInput) (*SplitOutput, error) {
	log = logging.OrNop(log)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	result, err := Process(ctx, log, cfg, input)
	if err != nil {
		return nil, err
	}

	out := &SplitOutput{ProcessOutput: result}
	if database == nil {
		return out, nil
	}

	maxParts := input.MaxParts
	if maxParts == 0 {
		maxParts = cfg.MaxParts
	}

	now := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	run := &db.Run{
		ID:            id.String(),
		InputPath:     result.InputPath,
		OutputDir:     result.OutputDir,
		MaxParts:      maxParts,
		Conversations: result.Conversations,
		Messages:      result.Messages,
		Skipped:       len(result.Skipped),
		Shards:        result.Shards,
		CreatedAt:     now.Unix(),
	}
	if err := db.InsertRun(ctx, database, run); err != nil {
		return nil, err
	}

	log.Debug("run recorded", zap.String("run_id", run.ID))
	out.RunID = run.ID
	return out, nil
}

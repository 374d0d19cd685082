package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/conversation"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/logging"
	"github.com/hpungsan/chatsplit/internal/shard"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	InputPath string // required
	MaxParts  int    // 0 uses config max_parts
}

// InspectOutput summarizes an archive without writing anything.
type InspectOutput struct {
	InputPath          string              `json:"input_path"`
	Records            int                 `json:"records"`
	Conversations      int                 `json:"conversations"`
	EmptyConversations int                 `json:"empty_conversations"`
	Stats              conversation.Stats  `json:"stats"`
	PlannedShards      []int               `json:"planned_shards"`
	Skipped            []ConversationError `json:"skipped"`
}

// Inspect flattens an archive and reports what a split would produce.
func Inspect(ctx context.Context, log *zap.Logger, cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	log = logging.OrNop(log)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	maxParts := input.MaxParts
	if maxParts == 0 {
		maxParts = cfg.MaxParts
	}
	if maxParts < 1 {
		return nil, errors.NewInvalidRequest("max_parts must be at least 1")
	}

	inputPath, err := ValidateInputPath(input.InputPath)
	if err != nil {
		return nil, err
	}

	flat, err := loadArchive(ctx, log, inputPath, cfg.FlattenWorkers)
	if err != nil {
		return nil, err
	}

	stats := conversation.Stats{Roles: map[string]int{}}
	empty := 0
	for _, c := range flat.Conversations {
		if c.Len() == 0 {
			empty++
		}
		stats.Add(conversation.ComputeStats(c))
	}

	sizes, err := shard.Sizes(len(flat.Conversations), maxParts)
	if err != nil {
		return nil, err
	}
	if sizes == nil {
		sizes = []int{}
	}

	return &InspectOutput{
		InputPath:          inputPath,
		Records:            flat.Records,
		Conversations:      len(flat.Conversations),
		EmptyConversations: empty,
		Stats:              stats,
		PlannedShards:      sizes,
		Skipped:            flat.Skipped,
	}, nil
}

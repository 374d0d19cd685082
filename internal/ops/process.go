package ops

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/logging"
	"github.com/hpungsan/chatsplit/internal/shard"
)

// ProcessInput contains parameters for the Process operation.
type ProcessInput struct {
	InputPath string // required, .json archive
	OutputDir string // required, created on first shard
	MaxParts  int    // 0 uses config max_parts
	Prefix    string // optional, default: config file_prefix, then input stem
}

// ProcessOutput contains the result of the Process operation.
type ProcessOutput struct {
	InputPath     string              `json:"input_path"`
	OutputDir     string              `json:"output_dir"`
	Conversations int                 `json:"conversations"`
	Messages      int                 `json:"messages"`
	Skipped       []ConversationError `json:"skipped"`
	Shards        []shard.File        `json:"shards"`
}

// Process loads an archive, flattens every conversation, partitions the
// result into at most MaxParts shards and writes each shard to OutputDir.
// Malformed conversations are skipped. When nothing survives flattening the
// output directory is left untouched.
func Process(ctx context.Context, log *zap.Logger, cfg *config.Config, input ProcessInput) (*ProcessOutput, error) {
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
	outputDir, err := ValidateOutputDir(input.OutputDir)
	if err != nil {
		return nil, err
	}

	log.Info("split started",
		zap.String("input", inputPath),
		zap.String("output", outputDir),
		zap.Int("max_parts", maxParts),
	)

	flat, err := loadArchive(ctx, log, inputPath, cfg.FlattenWorkers)
	if err != nil {
		return nil, err
	}

	parts, err := shard.Split(flat.Conversations, maxParts)
	if err != nil {
		return nil, err
	}

	out := &ProcessOutput{
		InputPath:     inputPath,
		OutputDir:     outputDir,
		Conversations: len(flat.Conversations),
		Skipped:       flat.Skipped,
		Shards:        []shard.File{},
	}

	if len(parts) == 0 {
		log.Info("no conversations to write",
			zap.Int("records", flat.Records),
			zap.Int("skipped", len(flat.Skipped)),
		)
		return out, nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.NewIO("create output directory", err)
	}

	prefix := resolvePrefix(input.Prefix, cfg.FilePrefix, inputPath)
	for i, part := range parts {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("write shards")
		}

		f, err := writeShard(outputDir, shard.FileName(prefix, i+1, len(parts)), part, cfg.IndentOutput())
		if err != nil {
			return nil, err
		}
		f.Index = i + 1

		log.Debug("shard written",
			zap.String("path", f.Path),
			zap.Int("conversations", f.Conversations),
			zap.String("size", humanBytes(f.Bytes)),
		)

		out.Messages += f.Messages
		out.Shards = append(out.Shards, f)
	}

	log.Info("split complete",
		zap.Int("conversations", out.Conversations),
		zap.Int("messages", out.Messages),
		zap.Int("shards", len(out.Shards)),
		zap.Int("skipped", len(out.Skipped)),
	)

	return out, nil
}

// resolvePrefix picks the shard file prefix: explicit, then configured, then
// the input file stem.
func resolvePrefix(explicit, configured, inputPath string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return SanitizeForFilename(p)
	}
	if p := strings.TrimSpace(configured); p != "" {
		return SanitizeForFilename(p)
	}
	return DefaultPrefix(inputPath)
}

package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/logging"
	"github.com/hpungsan/chatsplit/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	log *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, log *zap.Logger) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{db: db, cfg: cfg, log: logging.OrNop(log)}
}

// Request types for each tool

// SplitRequest represents the arguments for chatsplit_split.
type SplitRequest struct {
	InputPath string `json:"input_path"`
	OutputDir string `json:"output_dir"`
	MaxParts  int    `json:"max_parts,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
}

// InspectRequest represents the arguments for chatsplit_inspect.
type InspectRequest struct {
	InputPath string `json:"input_path"`
	MaxParts  int    `json:"max_parts,omitempty"`
}

// HistoryRequest represents the arguments for chatsplit_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// RunRequest represents the arguments for chatsplit_run.
type RunRequest struct {
	ID    string `json:"id"`
	Shard int    `json:"shard,omitempty"`
}

// PurgeRequest represents the arguments for chatsplit_purge.
type PurgeRequest struct {
	OlderThanDays int `json:"older_than_days,omitempty"`
}

// HandleSplit handles the chatsplit_split tool.
func (h *Handlers) HandleSplit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SplitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.MaxParts < 0 {
		return errorResult(errors.NewInvalidRequest("max_parts must be at least 1")), nil
	}

	result, err := ops.Split(ctx, h.db, h.log, h.cfg, ops.ProcessInput{
		InputPath: input.InputPath,
		OutputDir: input.OutputDir,
		MaxParts:  input.MaxParts,
		Prefix:    input.Prefix,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the chatsplit_inspect tool.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(ctx, h.log, h.cfg, ops.InspectInput{
		InputPath: input.InputPath,
		MaxParts:  input.MaxParts,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the chatsplit_history tool.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errors.NewInternal(stderrors.New("history is unavailable without a database"))), nil
	}

	result, err := ops.History(ctx, h.db, ops.HistoryInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRun handles the chatsplit_run tool.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errors.NewInternal(stderrors.New("history is unavailable without a database"))), nil
	}

	if input.Shard != 0 {
		result, err := ops.ReadShard(ctx, h.db, ops.ReadShardInput{RunID: input.ID, Index: input.Shard})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.ShowRun(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the chatsplit_purge tool.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errors.NewInternal(stderrors.New("history is unavailable without a database"))), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SplitError
	if stderrors.As(err, &sErr) {
		// Keep any wrapping context, e.g. "shard 2: ..."
		message := sErr.Message
		if full := err.Error(); full != sErr.Error() && strings.HasSuffix(full, sErr.Error()) {
			message = strings.TrimSuffix(full, sErr.Error()) + message
		}

		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": message,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

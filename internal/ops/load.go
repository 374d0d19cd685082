package ops

import (
	"context"
	stderrors "errors"
	"io"

	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/conversation"
	"github.com/hpungsan/chatsplit/internal/errors"
)

// flattened is the outcome of loading and flattening one archive.
type flattened struct {
	Records       int
	Conversations []*conversation.FlatConversation
	Skipped       []ConversationError
}

// loadArchive reads and flattens the archive at absPath. A parse failure is
// fatal; conversations that fail to flatten are logged and skipped.
func loadArchive(ctx context.Context, log *zap.Logger, absPath string, workers int) (*flattened, error) {
	file, err := openArchive(absPath)
	if err != nil {
		var sErr *errors.SplitError
		if stderrors.As(err, &sErr) {
			return nil, err
		}
		return nil, errors.NewIO("open input", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIO("read input", err)
	}

	records, err := conversation.DecodeArchive(absPath, data)
	if err != nil {
		return nil, err
	}

	results, err := conversation.FlattenAll(ctx, records, workers)
	if err != nil {
		return nil, err
	}

	out := &flattened{
		Records:       len(records),
		Conversations: make([]*conversation.FlatConversation, 0, len(results)),
		Skipped:       []ConversationError{},
	}
	for _, res := range results {
		if res.Err != nil {
			skip := ConversationError{
				Index:   res.Index,
				Title:   res.Title,
				Code:    string(errors.CodeOf(res.Err)),
				Message: messageOf(res.Err),
			}
			log.Warn("skipping conversation",
				zap.Int("index", skip.Index),
				zap.String("title", skip.Title),
				zap.String("code", skip.Code),
				zap.String("reason", skip.Message),
			)
			out.Skipped = append(out.Skipped, skip)
			continue
		}
		out.Conversations = append(out.Conversations, res.Conversation)
	}

	return out, nil
}

// messageOf returns the bare message of a SplitError, or err.Error() otherwise.
func messageOf(err error) string {
	var sErr *errors.SplitError
	if stderrors.As(err, &sErr) {
		return sErr.Message
	}
	return err.Error()
}

package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// utf8BOM is tolerated at the start of an archive; some exporters emit it.
var utf8BOM = []byte("\xef\xbb\xbf")

// Result is the outcome of flattening one archive record.
// Exactly one of Conversation and Err is set.
type Result struct {
	Index        int
	Title        string
	Conversation *FlatConversation
	Err          error
}

// DecodeArchive splits an archive into its top-level records without
// decoding them, so one malformed record cannot fail the whole archive.
// Anything other than a JSON array is a PARSE_ERROR.
func DecodeArchive(path string, data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.NewParse(path, fmt.Errorf("input is empty"))
	}
	if trimmed[0] != '[' {
		return nil, errors.NewParse(path, fmt.Errorf("top-level value must be an array"))
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewParse(path, err)
	}
	return records, nil
}

// DecodeRecord decodes one archive record. A record that does not match the
// conversation shape is a STRUCTURAL_ERROR for that record only.
func DecodeRecord(record json.RawMessage) (RawConversation, error) {
	var raw RawConversation
	if err := json.Unmarshal(record, &raw); err != nil {
		return RawConversation{}, errors.NewStructural(fmt.Sprintf("undecodable conversation: %v", err))
	}
	return raw, nil
}

// FlattenAll decodes and flattens every record, preserving input order.
// Per-record failures are reported in the matching Result; the returned
// error is only set when ctx is cancelled. workers > 1 flattens records
// concurrently.
func FlattenAll(ctx context.Context, records []json.RawMessage, workers int) ([]Result, error) {
	results := make([]Result, len(records))

	if workers <= 1 {
		for i, record := range records {
			if ctx.Err() != nil {
				return nil, errors.NewCancelled("flatten")
			}
			results[i] = flattenRecord(i, record)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, record := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return errors.NewCancelled("flatten")
			}
			results[i] = flattenRecord(i, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("flatten")
	}
	return results, nil
}

// flattenRecord decodes and flattens a single record.
func flattenRecord(index int, record json.RawMessage) Result {
	raw, err := DecodeRecord(record)
	if err != nil {
		return Result{Index: index, Title: salvageTitle(record), Err: err}
	}

	flat, err := Flatten(raw)
	if err != nil {
		return Result{Index: index, Title: raw.Title, Err: err}
	}
	return Result{Index: index, Title: raw.Title, Conversation: flat}
}

// salvageTitle pulls the title out of a record that failed full decoding,
// for use in warnings.
func salvageTitle(record json.RawMessage) string {
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(record, &head); err != nil {
		return ""
	}
	return head.Title
}

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/chatsplit/internal/errors"
)

func archiveOf(t *testing.T, convs ...RawConversation) []byte {
	t.Helper()
	data, err := json.Marshal(convs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

func TestDecodeArchive_Valid(t *testing.T) {
	data := archiveOf(t, chain("A", 0, 2), chain("B", 0, 3))

	records, err := DecodeArchive("in.json", data)
	if err != nil {
		t.Fatalf("DecodeArchive failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestDecodeArchive_EmptyArray(t *testing.T) {
	records, err := DecodeArchive("in.json", []byte("  []\n"))
	if err != nil {
		t.Fatalf("DecodeArchive failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestDecodeArchive_StripsBOM(t *testing.T) {
	data := append([]byte("\xef\xbb\xbf"), archiveOf(t, chain("A", 0, 1))...)

	records, err := DecodeArchive("in.json", data)
	if err != nil {
		t.Fatalf("DecodeArchive failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestDecodeArchive_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"object", `{"title": "x"}`},
		{"string", `"conversations"`},
		{"truncated", `[{"title": "x"`},
		{"garbage", `[not json]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeArchive("in.json", []byte(tt.input))
			if !errors.Is(err, errors.ErrParse) {
				t.Errorf("err = %v, want PARSE_ERROR", err)
			}
		})
	}
}

func TestDecodeRecord_Undecodable(t *testing.T) {
	record := json.RawMessage(`{"title": "Images", "mapping": {"1": {"id": "1", "message": {"author": {"role": "user"}, "content": {"parts": [{"asset": "x"}]}}, "parent": null, "children": []}}}`)

	_, err := DecodeRecord(record)
	if !errors.Is(err, errors.ErrStructural) {
		t.Fatalf("err = %v, want STRUCTURAL_ERROR", err)
	}
}

func TestDecodeRecord_IgnoresUnknownFields(t *testing.T) {
	record := json.RawMessage(`{
		"title": "Extra",
		"create_time": 1700000000.5,
		"mapping": {
			"r": {"id": "r", "message": null, "parent": null, "children": ["m"]},
			"m": {"id": "m", "message": {"author": {"role": "user", "name": null}, "content": {"content_type": "text", "parts": ["hi"]}, "status": "finished_successfully"}, "parent": "r", "children": []}
		}
	}`)

	raw, err := DecodeRecord(record)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	flat, err := Flatten(raw)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if diff := cmp.Diff([]string{"m"}, flat.MessageIDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenAll_KeepsOrderAndReportsFailures(t *testing.T) {
	records := []json.RawMessage{
		archiveRecord(t, chain("first", 0, 3)),
		json.RawMessage(`{"title": "broken", "mapping": {}}`),
		json.RawMessage(`{"title": "bad parts", "mapping": {"1": {"id": "1", "message": {"author": {"role": "user"}, "content": {"parts": [42]}}, "parent": null, "children": []}}}`),
		archiveRecord(t, chain("last", 10, 2)),
	}

	for _, workers := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			results, err := FlattenAll(context.Background(), records, workers)
			if err != nil {
				t.Fatalf("FlattenAll failed: %v", err)
			}
			if len(results) != 4 {
				t.Fatalf("results = %d, want 4", len(results))
			}

			titles := make([]string, len(results))
			for i, r := range results {
				if r.Index != i {
					t.Errorf("results[%d].Index = %d", i, r.Index)
				}
				titles[i] = r.Title
			}
			if diff := cmp.Diff([]string{"first", "broken", "bad parts", "last"}, titles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}

			if results[0].Err != nil || results[0].Conversation.Len() != 3 {
				t.Errorf("results[0] = %+v", results[0])
			}
			if !errors.Is(results[1].Err, errors.ErrStructural) {
				t.Errorf("results[1].Err = %v, want STRUCTURAL_ERROR", results[1].Err)
			}
			if !errors.Is(results[2].Err, errors.ErrStructural) {
				t.Errorf("results[2].Err = %v, want STRUCTURAL_ERROR", results[2].Err)
			}
			if results[3].Err != nil || results[3].Conversation.Len() != 2 {
				t.Errorf("results[3] = %+v", results[3])
			}
		})
	}
}

func TestFlattenAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []json.RawMessage{archiveRecord(t, chain("x", 0, 1))}
	for _, workers := range []int{1, 4} {
		_, err := FlattenAll(ctx, records, workers)
		if !errors.Is(err, errors.ErrCancelled) {
			t.Errorf("workers=%d: err = %v, want CANCELLED", workers, err)
		}
	}
}

func TestFlattenAll_ConcurrentMatchesSequential(t *testing.T) {
	var records []json.RawMessage
	for i := 0; i < 40; i++ {
		records = append(records, archiveRecord(t, chain(fmt.Sprintf("Chat %d", i), 0, 20)))
	}

	seq, err := FlattenAll(context.Background(), records, 1)
	if err != nil {
		t.Fatalf("sequential failed: %v", err)
	}
	par, err := FlattenAll(context.Background(), records, 8)
	if err != nil {
		t.Fatalf("concurrent failed: %v", err)
	}

	for i := range seq {
		a, _ := json.Marshal(seq[i].Conversation)
		b, _ := json.Marshal(par[i].Conversation)
		if string(a) != string(b) {
			t.Fatalf("result %d differs between sequential and concurrent runs", i)
		}
	}
}

func archiveRecord(t *testing.T, c RawConversation) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "{") {
		t.Fatalf("unexpected record encoding: %s", data)
	}
	return data
}

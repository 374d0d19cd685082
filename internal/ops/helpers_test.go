package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/chatsplit/internal/conversation"
)

func strPtr(s string) *string { return &s }

// chainConversation builds a linear conversation of n messages with ids 0..n-1,
// alternating user and assistant.
func chainConversation(title string, n int) conversation.RawConversation {
	mapping := make(map[string]conversation.RawNode, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		node := conversation.RawNode{
			ID: strconv.Itoa(i),
			Message: &conversation.RawMessage{
				Author:  conversation.Author{Role: role},
				Content: conversation.Content{Parts: []string{fmt.Sprintf("Message %d", i)}},
			},
			Children: []string{},
		}
		if i > 0 {
			node.Parent = strPtr(strconv.Itoa(i - 1))
		}
		if i < n-1 {
			node.Children = []string{strconv.Itoa(i + 1)}
		}
		mapping[strconv.Itoa(i)] = node
	}
	return conversation.RawConversation{Title: title, Mapping: mapping}
}

// writeArchive writes convs as a JSON array to dir/name and returns the path.
func writeArchive(t *testing.T, dir, name string, convs ...conversation.RawConversation) string {
	t.Helper()
	if convs == nil {
		convs = []conversation.RawConversation{}
	}
	data, err := json.Marshal(convs)
	require.NoError(t, err)
	return writeRaw(t, dir, name, string(data))
}

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// readShard decodes a written shard file.
func readShard(t *testing.T, path string) []*conversation.FlatConversation {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var convs []*conversation.FlatConversation
	require.NoError(t, json.Unmarshal(data, &convs))
	return convs
}

// listDir returns the entry names of dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

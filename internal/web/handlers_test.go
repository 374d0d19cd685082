package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/db"
	"github.com/hpungsan/chatsplit/internal/ops"
)

type testEnv struct {
	handler http.Handler
	runID   string
	outDir  string
}

// setupTest records one split run of three conversations over two shards.
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()

	input := filepath.Join(tmpDir, "conversations.json")
	var records []string
	for i, text := range []string{"**bold** answer", "<script>alert(1)</script>", "plain 🌍"} {
		records = append(records, fmt.Sprintf(`{"title": "Chat %d", "mapping": {
			"a": {"id": "a", "message": {"author": {"role": "user"}, "content": {"parts": ["question %d"]}}, "parent": null, "children": ["b"]},
			"b": {"id": "b", "message": {"author": {"role": "assistant"}, "content": {"parts": [%q]}}, "parent": "a", "children": []}
		}}`, i, i, text))
	}
	require.NoError(t, os.WriteFile(input, []byte("["+strings.Join(records, ",")+"]"), 0600))

	outDir := filepath.Join(tmpDir, "out")
	out, err := ops.Split(context.Background(), database, nil, cfg, ops.ProcessInput{
		InputPath: input,
		OutputDir: outDir,
		MaxParts:  2,
	})
	require.NoError(t, err)

	h, err := newHandlers(database, cfg, nil, "test")
	require.NoError(t, err)

	return &testEnv{handler: newRouter(h), runID: out.RunID, outDir: outDir}
}

func (e *testEnv) get(t *testing.T, path string, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirects(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/runs", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/runs", "")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestHandleRuns(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	require.Contains(t, body, env.runID)
	require.Contains(t, body, "conversations.json")

	rec = env.get(t, "/runs?limit=5", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var out ops.HistoryOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	require.Equal(t, 5, out.Pagination.Limit)
}

func TestHandleRun(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/runs/"+env.runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "conversations_part_1.json")
	require.Contains(t, body, fmt.Sprintf("/runs/%s/shards/2", env.runID))

	rec = env.get(t, "/runs/01UNKNOWN", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Error 404")

	rec = env.get(t, "/runs/01UNKNOWN", "application/json")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var payload map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "NOT_FOUND", payload["error"]["code"])
}

func TestHandleShard(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, fmt.Sprintf("/runs/%s/shards/1", env.runID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Chat 0")
	require.Contains(t, body, "Chat 1")
	require.Contains(t, body, "<strong>bold</strong>", "message parts render as Markdown")
	require.NotContains(t, body, "<script>alert(1)</script>", "raw HTML must not pass through")

	rec = env.get(t, fmt.Sprintf("/runs/%s/shards/2", env.runID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "plain 🌍")

	rec = env.get(t, fmt.Sprintf("/runs/%s/shards/2", env.runID), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var out ops.ReadShardOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Conversations, 1)
	require.Equal(t, "Chat 2", out.Conversations[0].Title)
}

func TestHandleShard_Errors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"non-numeric index", fmt.Sprintf("/runs/%s/shards/abc", env.runID), http.StatusBadRequest},
		{"index out of range", fmt.Sprintf("/runs/%s/shards/3", env.runID), http.StatusNotFound},
		{"unknown run", "/runs/01UNKNOWN/shards/1", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.get(t, tc.path, "")
			require.Equal(t, tc.status, rec.Code)
		})
	}

	// Shard file removed from disk after the run was recorded.
	require.NoError(t, os.RemoveAll(env.outDir))
	rec := env.get(t, fmt.Sprintf("/runs/%s/shards/1", env.runID), "application/json")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	env := setupTest(t)

	rec := env.get(t, "/static/style.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestRun_GracefulShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	// Reserve a free port, then release it for the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	srv, err := NewServer(database, nil, nil, "test", "127.0.0.1", port)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, nil) }()

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/conversation"
	"github.com/hpungsan/chatsplit/internal/db"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/ops"
)

// Handlers contains HTTP route handlers for the run viewer.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	log      *zap.Logger
	renderer *Renderer
}

// RunsPageData is the template data for the run list page.
type RunsPageData struct {
	PageData
	Items      []*db.Run
	Pagination ops.Pagination
}

// RunPageData is the template data for the run detail page.
type RunPageData struct {
	PageData
	Run *db.Run
}

// MessageView is one rendered message on the shard page.
type MessageView struct {
	ID   string
	Role string
	HTML template.HTML
}

// ConversationView is one conversation on the shard page.
type ConversationView struct {
	Title    string
	Messages []MessageView
}

// ShardPageData is the template data for the shard page.
type ShardPageData struct {
	PageData
	Run           *db.Run
	Index         int
	Total         int
	Bytes         int64
	Conversations []ConversationView
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.PingContext(r.Context()) != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRuns handles GET /runs: paginated run history.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(r.Context(), h.db, ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "runs", RunsPageData{
		PageData:   h.renderer.page("Runs", "runs"),
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleRun handles GET /runs/{id}: a single run with its shards.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	run, err := ops.ShowRun(r.Context(), h.db, chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, run)
		return
	}

	h.renderer.renderPage(w, "run", RunPageData{
		PageData: h.renderer.page("Run "+shortID(run.ID), "runs"),
		Run:      run,
	})
}

// HandleShard handles GET /runs/{id}/shards/{index}: one shard's conversations.
func (h *Handlers) HandleShard(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("shard index must be an integer"))
		return
	}

	result, err := ops.ReadShard(r.Context(), h.db, ops.ReadShardInput{
		RunID: chi.URLParam(r, "id"),
		Index: index,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	views := make([]ConversationView, 0, len(result.Conversations))
	for _, c := range result.Conversations {
		views = append(views, conversationView(c))
	}

	h.renderer.renderPage(w, "shard", ShardPageData{
		PageData:      h.renderer.page(fmt.Sprintf("Shard %d of run %s", index, shortID(result.Run.ID)), "runs"),
		Run:           result.Run,
		Index:         index,
		Total:         len(result.Run.Shards),
		Bytes:         result.Shard.Bytes,
		Conversations: views,
	})
}

// conversationView renders each message's parts as Markdown.
func conversationView(c *conversation.FlatConversation) ConversationView {
	view := ConversationView{Title: c.Title, Messages: make([]MessageView, 0, c.Len())}
	c.Each(func(id string, msg conversation.FlatMessage) {
		view.Messages = append(view.Messages, MessageView{
			ID:   id,
			Role: msg.Role,
			HTML: renderMarkdown(strings.Join(msg.Content, "\n\n")),
		})
	})
	return view
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// shortID truncates a run id for page titles.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}

// Package conversation models chat-export archives and reduces each
// conversation's message tree to a single ordered message list.
package conversation

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RawConversation is one record of a chat-export archive.
type RawConversation struct {
	Title   string             `json:"title"`
	Mapping map[string]RawNode `json:"mapping"`
}

// RawNode is one entry of a conversation's message tree.
type RawNode struct {
	ID       string      `json:"id"`
	Message  *RawMessage `json:"message"`
	Parent   *string     `json:"parent"`
	Children []string    `json:"children"`
}

// RawMessage is the payload carried by a node. Nodes without one (the root,
// hidden system nodes) are dropped during flattening.
type RawMessage struct {
	Author  Author  `json:"author"`
	Content Content `json:"content"`
}

// Author identifies who wrote a message.
type Author struct {
	Role string `json:"role"`
}

// Content holds the text parts of a message.
type Content struct {
	Parts []string `json:"parts"`
}

// FlatMessage is a message reduced to its role and verbatim content parts.
type FlatMessage struct {
	Role    string   `json:"role"`
	Content []string `json:"content"`
}

// FlatConversation is a conversation reduced to its title and the messages
// on the selected path, keyed by source node id in traversal order.
type FlatConversation struct {
	Title    string                                      `json:"title"`
	Messages *orderedmap.OrderedMap[string, FlatMessage] `json:"messages"`
}

// NewFlatConversation returns an empty FlatConversation with the given title.
func NewFlatConversation(title string) *FlatConversation {
	return &FlatConversation{
		Title:    title,
		Messages: orderedmap.New[string, FlatMessage](),
	}
}

// MarshalJSON writes {"title":..,"messages":{..}} with messages in traversal
// order. Strings are emitted without HTML escaping; an enclosing
// json.Marshal still escapes them, a json.Encoder with SetEscapeHTML(false)
// does not.
func (c FlatConversation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encode appends a newline after each value
	write := func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1)
		return nil
	}

	buf.WriteString(`{"title":`)
	if err := write(c.Title); err != nil {
		return nil, err
	}
	buf.WriteString(`,"messages":{`)

	var err error
	first := true
	c.Each(func(id string, msg FlatMessage) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err = write(id); err != nil {
			return
		}
		buf.WriteByte(':')
		err = write(msg)
	})
	if err != nil {
		return nil, err
	}

	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Len returns the number of messages.
func (c *FlatConversation) Len() int {
	if c == nil || c.Messages == nil {
		return 0
	}
	return c.Messages.Len()
}

// MessageIDs returns message keys in traversal order.
func (c *FlatConversation) MessageIDs() []string {
	ids := make([]string, 0, c.Len())
	c.Each(func(id string, _ FlatMessage) {
		ids = append(ids, id)
	})
	return ids
}

// Each calls fn for every message in traversal order.
func (c *FlatConversation) Each(fn func(id string, msg FlatMessage)) {
	if c.Len() == 0 {
		return
	}
	for pair := c.Messages.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

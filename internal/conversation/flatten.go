package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// Flatten reduces a conversation's message tree to the single path that
// starts at the root and always follows the first child. Nodes without a
// message are skipped. The result is a fresh value; raw is not modified.
//
// A mapping without exactly one root, with a parent id that does not
// resolve, or with a cycle on the walked path yields a STRUCTURAL_ERROR.
// A child id that does not resolve ends the walk like an empty children list.
func Flatten(raw RawConversation) (*FlatConversation, error) {
	root, err := findRoot(raw.Mapping)
	if err != nil {
		return nil, err
	}

	path, err := walkFirstChild(raw.Mapping, root)
	if err != nil {
		return nil, err
	}

	flat := NewFlatConversation(raw.Title)
	for _, key := range path {
		node := raw.Mapping[key]
		if node.Message == nil {
			continue
		}

		id := node.ID
		if id == "" {
			id = key
		}
		if _, exists := flat.Messages.Get(id); exists {
			return nil, errors.NewStructural(fmt.Sprintf("duplicate node id %q on path", id))
		}

		flat.Messages.Set(id, FlatMessage{
			Role:    node.Message.Author.Role,
			Content: copyParts(node.Message.Content.Parts),
		})
	}

	return flat, nil
}

// findRoot returns the mapping key of the unique node with a null parent.
// A mapping cut out of a larger export has no such node; its root is then
// the single node whose parent lies outside the mapping. Any other parent
// that does not resolve is structural.
func findRoot(mapping map[string]RawNode) (string, error) {
	var roots, detached []string
	for key, node := range mapping {
		if node.Parent == nil {
			roots = append(roots, key)
			continue
		}
		if _, ok := mapping[*node.Parent]; !ok {
			detached = append(detached, key)
		}
	}

	if len(roots) == 0 && len(detached) == 1 {
		return detached[0], nil
	}
	if len(detached) > 0 {
		sort.Strings(detached)
		key := detached[0]
		return "", errors.NewStructural(fmt.Sprintf("node %q references missing parent %q", key, *mapping[key].Parent))
	}

	switch len(roots) {
	case 0:
		return "", errors.NewStructural("no root node")
	case 1:
		return roots[0], nil
	default:
		sort.Strings(roots)
		return "", errors.NewStructural(fmt.Sprintf("multiple root nodes: %s", strings.Join(roots, ", ")))
	}
}

// walkFirstChild returns the mapping keys visited from root to a leaf.
func walkFirstChild(mapping map[string]RawNode, root string) ([]string, error) {
	visited := make(map[string]bool)
	var path []string

	current := root
	for {
		if visited[current] {
			return nil, errors.NewStructural(fmt.Sprintf("cycle detected at node %q", current))
		}
		visited[current] = true
		path = append(path, current)

		next, ok := nextNode(mapping[current])
		if !ok {
			return path, nil
		}
		// Children are not cross-checked; one outside the mapping ends the path
		if _, exists := mapping[next]; !exists {
			return path, nil
		}
		current = next
	}
}

// nextNode picks the branch to follow. Edited messages show up as siblings;
// the first child is taken until a product decision says otherwise.
func nextNode(node RawNode) (string, bool) {
	if len(node.Children) == 0 {
		return "", false
	}
	return node.Children[0], true
}

// copyParts copies parts so the flat record never aliases the raw one.
// The result is never nil so it encodes as [] rather than null.
func copyParts(parts []string) []string {
	out := make([]string, len(parts))
	copy(out, parts)
	return out
}

package conversation

import (
	"math"
	"strings"
	"unicode/utf8"
)

// tokensPerWord is the multiplier used to estimate tokens from word counts.
const tokensPerWord = 1.3

// Stats summarizes the size of a flattened conversation.
type Stats struct {
	Messages       int            `json:"messages"`
	Roles          map[string]int `json:"roles"`
	Chars          int            `json:"chars"`
	TokensEstimate int            `json:"tokens_estimate"`
}

// ComputeStats counts messages, roles, characters and estimated tokens.
func ComputeStats(c *FlatConversation) Stats {
	stats := Stats{Roles: make(map[string]int)}
	words := 0
	c.Each(func(_ string, msg FlatMessage) {
		stats.Messages++
		stats.Roles[msg.Role]++
		for _, part := range msg.Content {
			stats.Chars += CountChars(part)
			words += len(strings.Fields(part))
		}
	})
	stats.TokensEstimate = tokensForWords(words)
	return stats
}

// Add folds other into s.
func (s *Stats) Add(other Stats) {
	if s.Roles == nil {
		s.Roles = make(map[string]int)
	}
	s.Messages += other.Messages
	s.Chars += other.Chars
	s.TokensEstimate += other.TokensEstimate
	for role, n := range other.Roles {
		s.Roles[role] += n
	}
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// EstimateTokens estimates token count using a word-based heuristic.
func EstimateTokens(text string) int {
	return tokensForWords(len(strings.Fields(text)))
}

func tokensForWords(words int) int {
	return int(math.Ceil(float64(words) * tokensPerWord))
}

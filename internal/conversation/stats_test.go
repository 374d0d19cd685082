package conversation

import (
	"testing"
)

func TestComputeStats(t *testing.T) {
	flat, err := Flatten(chain("Stats", 0, 4))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	stats := ComputeStats(flat)
	if stats.Messages != 4 {
		t.Errorf("Messages = %d, want 4", stats.Messages)
	}
	if stats.Roles["user"] != 2 || stats.Roles["assistant"] != 2 {
		t.Errorf("Roles = %v, want 2 user / 2 assistant", stats.Roles)
	}
	// "Message N" is 9 runes and 2 words per message.
	if stats.Chars != 36 {
		t.Errorf("Chars = %d, want 36", stats.Chars)
	}
	if stats.TokensEstimate != 11 {
		t.Errorf("TokensEstimate = %d, want 11 (ceil(8 * 1.3))", stats.TokensEstimate)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(NewFlatConversation("empty"))
	if stats.Messages != 0 || stats.Chars != 0 || stats.TokensEstimate != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestStats_Add(t *testing.T) {
	var total Stats
	total.Add(Stats{Messages: 2, Roles: map[string]int{"user": 2}, Chars: 10, TokensEstimate: 3})
	total.Add(Stats{Messages: 1, Roles: map[string]int{"assistant": 1, "user": 0}, Chars: 5, TokensEstimate: 2})

	if total.Messages != 3 || total.Chars != 15 || total.TokensEstimate != 5 {
		t.Errorf("total = %+v", total)
	}
	if total.Roles["user"] != 2 || total.Roles["assistant"] != 1 {
		t.Errorf("Roles = %v", total.Roles)
	}
}

func TestCountChars(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"Hello 🌍🚀", 8},
		{"Привет", 6},
	}
	for _, tt := range tests {
		if got := CountChars(tt.input); got != tt.want {
			t.Errorf("CountChars(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"one", 2},
		{"one two three", 4},
		{"  spaced   out  ", 3},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

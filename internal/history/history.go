// Package history provides conversation storage for multi-turn interactions.
package history

import (
	"context"
	"time"
)

// Turn is a single question/answer exchange in a session.
type Turn struct {
	SessionID string
	Question  string
	Answer    string
	Timestamp time.Time
}

// Store is an append-only log of turns keyed by session.
type Store interface {
	// Append records a completed turn.
	Append(ctx context.Context, turn Turn) error

	// Recent returns up to limit turns for the session, most-recent-last.
	Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}

// FormatForPrompt formats turns (oldest first) for inclusion in a model prompt.
// Returns an empty string if there is no history.
func FormatForPrompt(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var out string
	for _, t := range turns {
		out += "User: " + t.Question + "\n"
		out += "Assistant: " + t.Answer + "\n"
	}
	return out
}

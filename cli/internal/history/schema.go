// Package history keeps a JSONL log of generated commit messages, one Record
// per line, in the user's cache directory. The active file is bounded: older
// lines are moved to gzipped archives, of which only a few are kept.
package history

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Record is one line in history.jsonl.
type Record struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	RunID    string    `json:"run_id,omitempty"`
	RepoRoot string    `json:"repo_root"`
	Model    string    `json:"model"`
	// Strategy is the prompt augmentation used: context, embeddings or none.
	Strategy string `json:"strategy"`
	Attempts int    `json:"attempts"`
	// Outcome is the interaction outcome, e.g. committed or cancelled, or
	// "failed" when generation did not produce a message.
	Outcome      string `json:"outcome"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	Staged       bool   `json:"staged"`
	Truncated    bool   `json:"truncated,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	EvalTokens   int    `json:"eval_tokens,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
}

// NewRecord returns a record with a fresh id and the current time.
func NewRecord() Record {
	return Record{ID: uuid.NewString(), Time: time.Now().UTC()}
}

// DefaultDir returns the directory holding history.jsonl, under the user
// cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "commitgen"), nil
}

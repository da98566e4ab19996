package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/version"
)

// CheckResult is the result of a health/model check.
type CheckResult struct {
	Reachable    bool     // Server responded with 200.
	ModelPresent bool     // Requested model name appears in the tags list.
	ModelNames   []string // All model names from /api/tags (for diagnostics).
}

// ModelInfo is one installed model from /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Details    struct {
		Family        string `json:"family"`
		ParameterSize string `json:"parameter_size"`
	} `json:"details"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// Tags GETs /api/tags and returns the installed models.
func (c *Client) Tags(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, erruser.Service("Invalid Ollama host.", fmt.Errorf("ollama tags request: %w", err), false)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "/api/tags", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, erruser.Service("The Ollama server failed to list models.",
			fmt.Errorf("ollama tags: %w: HTTP %d", ErrUnreachable, resp.StatusCode), resp.StatusCode >= 500)
	}
	var body tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, erruser.Service("The Ollama server sent an unreadable model list.",
			fmt.Errorf("ollama tags: parse response: %w", err), false)
	}
	return body.Models, nil
}

// Check verifies the server is reachable and whether the given model is present.
// A model without a tag matches its ":latest" variant.
func (c *Client) Check(ctx context.Context, model string) (*CheckResult, error) {
	models, err := c.Tags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return &CheckResult{
		Reachable:    true,
		ModelPresent: HasModel(names, model),
		ModelNames:   names,
	}, nil
}

// HasModel reports whether model is among names, treating "name" and
// "name:latest" as the same model.
func HasModel(names []string, model string) bool {
	if model == "" {
		return false
	}
	want := canonicalName(model)
	for _, n := range names {
		if canonicalName(n) == want {
			return true
		}
	}
	return false
}

func canonicalName(n string) string {
	n = strings.TrimSpace(n)
	if !strings.Contains(n, ":") {
		return n + ":latest"
	}
	return n
}

// preferredFamilies orders installed models for automatic selection.
var preferredFamilies = []string{"qwen2.5-coder", "qwen3", "llama3.2", "llama3.1", "llama3", "mistral", "gemma", "phi", "deepseek"}

// embeddingHints mark models that cannot generate text.
var embeddingHints = []string{"embed", "bge", "minilm", "e5-"}

// PickModel chooses a chat model from installed names: the first preferred
// family present, otherwise the first non-embedding model. ok is false when
// nothing suitable is installed.
func PickModel(names []string) (string, bool) {
	var chat []string
	for _, n := range names {
		if !isEmbeddingModel(n) {
			chat = append(chat, n)
		}
	}
	for _, fam := range preferredFamilies {
		for _, n := range chat {
			if strings.HasPrefix(strings.ToLower(n), fam) {
				return n, true
			}
		}
	}
	if len(chat) > 0 {
		return chat[0], true
	}
	return "", false
}

func isEmbeddingModel(name string) bool {
	lc := strings.ToLower(name)
	for _, h := range embeddingHints {
		if strings.Contains(lc, h) {
			return true
		}
	}
	return false
}

// Ping reports whether the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Tags(ctx)
	return err
}

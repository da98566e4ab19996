// Package embed computes text embeddings through Ollama's embedding endpoint
// and keeps them in an LRU cache, so regenerating a message for an unchanged
// tree does not embed the same change twice.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"
)

const _defaultCacheSize = 256

// ErrEmptyEmbedding is returned when the model yields a zero-length vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder embeds text with one model.
type Embedder struct {
	model string
	fn    chromem.EmbeddingFunc
	cache *lru.Cache[string, []float32]
}

// New returns an Embedder that calls Ollama at host (e.g. http://localhost:11434).
func New(model, host string, cacheSize int) (*Embedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("embed: model required")
	}
	api := strings.TrimSuffix(host, "/") + "/api"
	return NewWithFunc(model, chromem.NewEmbeddingFuncOllama(model, api), cacheSize)
}

// NewWithFunc returns an Embedder over an arbitrary embedding function.
func NewWithFunc(model string, fn chromem.EmbeddingFunc, cacheSize int) (*Embedder, error) {
	if fn == nil {
		return nil, fmt.Errorf("embed: embedding func required")
	}
	if cacheSize <= 0 {
		cacheSize = _defaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Embedder{model: model, fn: fn, cache: cache}, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding of text, from cache when possible.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}
	v, err := e.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	if len(v) == 0 {
		return nil, ErrEmptyEmbedding
	}
	e.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached embeddings.
func (e *Embedder) Len() int { return e.cache.Len() }

func (e *Embedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Match is one ranked document.
type Match struct {
	ID         string
	Similarity float32
}

// Rank embeds docs (id to content) into an in-memory collection and returns
// up to n ids ordered by similarity to query.
func (e *Embedder) Rank(ctx context.Context, query string, docs map[string]string, n int) ([]Match, error) {
	if len(docs) == 0 || n <= 0 {
		return nil, nil
	}
	db := chromem.NewDB()
	col, err := db.CreateCollection("changes", nil, e.Embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	batch := make([]chromem.Document, 0, len(docs))
	for id, content := range docs {
		batch = append(batch, chromem.Document{ID: id, Content: content})
	}
	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	n = min(n, col.Count())
	results, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = Match{ID: r.ID, Similarity: r.Similarity}
	}
	return out, nil
}

// Package prompt builds the commit-message prompt: the system prompt (a
// prompt file or a named template), a CONTEXT section describing the change,
// the DIFF, and at most one augmentation.
//
// Augmentation strategies, in priority order:
//  1. enabled context providers, one named block each;
//  2. an embeddings-capable model, used to rank the changed files against the
//     whole change; any failure falls back to no augmentation;
//  3. none.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"commitgen/cli/internal/changes"
	"commitgen/cli/internal/contextprov"
	"commitgen/cli/internal/embed"
	"commitgen/cli/internal/erruser"
)

// Strategy is the augmentation applied to a prompt.
type Strategy string

const (
	StrategyContext    Strategy = "context"
	StrategyEmbeddings Strategy = "embeddings"
	StrategyNone       Strategy = "none"
)

const (
	// EmojiInstruction is appended to the system prompt when emojis are enabled.
	EmojiInstruction = "Start the summary line with one fitting gitmoji (for example ✨ for a feature, 🐛 for a fix, 📝 for docs)."
	// ClosingInstruction ends every prompt.
	ClosingInstruction = "Write the commit message for these changes now. Reply with the commit message only."

	maxRankedFiles = 3
	maxQueryChars  = 2000
)

// SystemOptions selects the system prompt.
type SystemOptions struct {
	PromptFile    string // takes precedence over Template when set
	Template      string
	TemplatesPath string // user catalog; empty for built-ins only
	UseEmojis     bool
}

// SystemPrompt returns the system prompt for opts.
func SystemPrompt(opts SystemOptions) (string, error) {
	var system string
	if opts.PromptFile != "" {
		data, err := os.ReadFile(opts.PromptFile)
		if err != nil {
			msg := fmt.Sprintf("Could not read prompt file %s.", opts.PromptFile)
			if errors.Is(err, fs.ErrNotExist) {
				return "", erruser.Configuration(msg, err).
					WithHint("Fix prompt_file or unset it: commitgen config set prompt_file \"\"")
			}
			return "", erruser.Configuration(msg, err)
		}
		system = strings.TrimSpace(string(data))
		if system == "" {
			return "", erruser.Configuration(fmt.Sprintf("Prompt file %s is empty.", opts.PromptFile), nil)
		}
	} else {
		catalog, err := LoadCatalog(opts.TemplatesPath)
		if err != nil {
			return "", err
		}
		name := opts.Template
		if name == "" {
			name = "default"
		}
		t, err := catalog.Get(name)
		if err != nil {
			return "", err
		}
		system = t.System
	}
	if opts.UseEmojis {
		system += "\n" + EmojiInstruction
	}
	return system, nil
}

// Embedder is the subset of embed.Embedder the assembler uses.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Rank(ctx context.Context, query string, docs map[string]string, n int) ([]embed.Match, error)
}

// Assembler builds prompts for change sets.
type Assembler struct {
	System string
	// Providers are the enabled context provider names, in order.
	Providers []string
	// Context carries the repository view for providers; Changes is set per call.
	Context contextprov.Input
	// Embedder is nil when no embeddings-capable model is configured.
	Embedder Embedder
	Log      zerolog.Logger
}

// Prompt is an assembled prompt.
type Prompt struct {
	Text         string
	Strategy     Strategy
	Augmentation string
}

// Assemble builds the prompt for cs. Provider and embedding failures never
// fail assembly; only a cancelled context does.
func (a *Assembler) Assemble(ctx context.Context, cs *changes.ChangeSet) (*Prompt, error) {
	strategy, aug := StrategyNone, ""
	switch {
	case len(a.Providers) > 0:
		in := a.Context
		in.Changes = cs
		blocks, err := contextprov.Gather(ctx, a.Providers, in)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			a.Log.Warn().Err(err).Msg("some context providers failed")
		}
		strategy, aug = StrategyContext, renderBlocks(blocks)
	case a.Embedder != nil:
		text, err := a.embeddingContext(ctx, cs)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			a.Log.Debug().Err(err).Str("model", a.Embedder.Model()).Msg("embedding context unavailable")
		} else {
			strategy, aug = StrategyEmbeddings, text
		}
	}
	return &Prompt{
		Text:         Build(a.System, cs, aug),
		Strategy:     strategy,
		Augmentation: aug,
	}, nil
}

func renderBlocks(blocks []contextprov.Block) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("ADDITIONAL CONTEXT:\n")
	for _, blk := range blocks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", blk.Name, blk.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// embeddingContext ranks the changed files by similarity to the whole change
// and notes which model produced the embeddings.
func (a *Assembler) embeddingContext(ctx context.Context, cs *changes.ChangeSet) (string, error) {
	query := cs.Description + "\n" + cs.Diff
	if r := []rune(query); len(r) > maxQueryChars {
		query = string(r[:maxQueryChars])
	}
	vec, err := a.Embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}
	docs := make(map[string]string, len(cs.Files))
	for _, f := range cs.Files {
		docs[f.Path] = f.Line() + "\n" + strings.Join(f.Declarations, "\n")
	}
	var b strings.Builder
	b.WriteString("RELATED CHANGES:\n")
	if len(docs) > 1 {
		matches, err := a.Embedder.Rank(ctx, query, docs, maxRankedFiles)
		if err != nil {
			return "", err
		}
		b.WriteString("Files most representative of the change:\n")
		for _, m := range matches {
			fmt.Fprintf(&b, "- %s (similarity %.2f)\n", m.ID, m.Similarity)
		}
	}
	fmt.Fprintf(&b, "(embeddings: %s, %d dimensions)", a.Embedder.Model(), len(vec))
	return b.String(), nil
}

// Build lays out the final prompt. The diff and description are included
// verbatim.
func Build(system string, cs *changes.ChangeSet, augmentation string) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	b.WriteString("CONTEXT:\n")
	b.WriteString(cs.Stats.Summary())
	b.WriteByte('\n')
	if cs.Description != "" {
		b.WriteString(cs.Description)
		b.WriteByte('\n')
	}
	if len(cs.Bumps) > 0 {
		b.WriteString("Version changes:\n")
		for _, v := range cs.Bumps {
			b.WriteString("- ")
			b.WriteString(v.Annotation())
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nDIFF:\n")
	b.WriteString(cs.Diff)
	if !strings.HasSuffix(cs.Diff, "\n") {
		b.WriteByte('\n')
	}
	if augmentation != "" {
		b.WriteByte('\n')
		b.WriteString(augmentation)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(ClosingInstruction)
	return b.String()
}

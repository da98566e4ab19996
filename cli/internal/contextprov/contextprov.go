// Package contextprov gathers extra context for the commit-message prompt from
// named providers (branch, docs, code, folder). Providers are registered by
// name so new sources can be added without changing prompt assembly.
package contextprov

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"commitgen/cli/internal/changes"
)

var (
	// ErrEmptyName is returned by Register when the provider name is empty.
	ErrEmptyName = errors.New("contextprov: empty provider name")
	// ErrUnknownProvider is returned by Gather for names with no registered provider.
	ErrUnknownProvider = errors.New("unknown context provider")
)

// Repo is the repository view providers read from.
type Repo interface {
	Branch(ctx context.Context) (string, error)
	RecentSubjects(ctx context.Context, n int) ([]string, error)
	ListFiles(ctx context.Context, pathspecs ...string) ([]string, error)
}

// Input is what every provider receives.
type Input struct {
	Root    string // repository root on disk
	Repo    Repo
	Changes *changes.ChangeSet
}

// Provider produces one named block of context. An empty result means the
// provider had nothing to add.
type Provider interface {
	Collect(ctx context.Context, in Input) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, in Input) (string, error)

// Collect calls f.
func (f ProviderFunc) Collect(ctx context.Context, in Input) (string, error) { return f(ctx, in) }

var (
	registry   = make(map[string]Provider)
	registryMu sync.RWMutex
)

// Register adds p under name, replacing any earlier provider with that name.
func Register(name string, p Provider) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrEmptyName
	}
	if p == nil {
		return fmt.Errorf("contextprov: nil provider %q", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = p
	return nil
}

// MustRegister is Register that panics on error. Used from init.
func MustRegister(name string, p Provider) {
	if err := Register(name, p); err != nil {
		panic(err)
	}
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered provider names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Block is the output of one provider.
type Block struct {
	Name    string
	Content string
}

// Gather runs the named providers in order and returns their non-empty
// blocks. Unknown names and provider failures do not stop the others; they
// are joined into the returned error alongside whatever blocks succeeded.
// A cancelled context stops gathering.
func Gather(ctx context.Context, names []string, in Input) ([]Block, error) {
	var (
		blocks []Block
		errs   []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}
		p, ok := Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, name))
			continue
		}
		content, err := p.Collect(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("context provider %s: %w", name, err))
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			blocks = append(blocks, Block{Name: name, Content: content})
		}
	}
	return blocks, errors.Join(errs...)
}

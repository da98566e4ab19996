package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"commitgen/cli/internal/erruser"
)

// Target selects which config file(s) SetKey writes.
type Target int

const (
	// TargetUser writes the user config file.
	TargetUser Target = iota
	// TargetProject writes the project config file.
	TargetProject
	// TargetAll writes every config file that currently exists.
	TargetAll
)

func (t Target) String() string {
	switch t {
	case TargetProject:
		return "project"
	case TargetAll:
		return "all"
	default:
		return "user"
	}
}

// Store reads and writes the persisted config files.
type Store struct {
	UserPath    string
	ProjectPath string // empty outside a repository
}

// NewStore returns a Store for the user config and, when repoRoot is set, the
// project config under it.
func NewStore(repoRoot, userPath string) (*Store, error) {
	if userPath == "" {
		p, err := UserConfigPath()
		if err != nil {
			return nil, err
		}
		userPath = p
	}
	s := &Store{UserPath: userPath}
	if repoRoot != "" {
		s.ProjectPath = ProjectConfigPath(repoRoot)
	}
	return s, nil
}

// ActivePaths returns the config files that exist, project first.
func (s *Store) ActivePaths() []string {
	var out []string
	for _, p := range []string{s.ProjectPath, s.UserPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) targetPaths(target Target) ([]string, error) {
	switch target {
	case TargetProject:
		if s.ProjectPath == "" {
			return nil, erruser.Configuration("No project config outside a repository.", nil).
				WithHint("Run inside a repository or use --user.")
		}
		return []string{s.ProjectPath}, nil
	case TargetAll:
		if paths := s.ActivePaths(); len(paths) > 0 {
			return paths, nil
		}
		return []string{s.UserPath}, nil
	default:
		return []string{s.UserPath}, nil
	}
}

// SetKey validates key, coerces raw for it and writes it to the target file(s).
// With TargetAll each active file is updated independently; failures are
// joined and do not stop the remaining files. It returns the paths written.
func (s *Store) SetKey(key, raw string, target Target) ([]string, error) {
	key = strings.TrimSpace(key)
	spec, ok := lookupSpec(key)
	if !ok {
		kerr := &KeyError{Key: key, Suggestions: Suggest(key)}
		return nil, erruser.Configuration(kerr.Error(), kerr)
	}
	value, err := valueFor(spec, raw)
	if err != nil {
		return nil, erruser.Configuration(fmt.Sprintf("Invalid value for %s.", key), err)
	}
	if key == "model" && value.(string) == "" {
		return nil, erruser.Configuration("The model identifier must not be empty.", nil)
	}
	paths, err := s.targetPaths(target)
	if err != nil {
		return nil, err
	}

	var written []string
	var errs []error
	for _, p := range paths {
		if err := updateFile(p, key, value); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, p)
	}
	return written, errors.Join(errs...)
}

func updateFile(path, key string, value any) error {
	doc, ok, err := readDocument(path)
	if err != nil {
		return err
	}
	if !ok {
		doc = make(map[string]any)
	}
	ApplyKey(doc, key, value)
	return writeDocument(path, doc)
}

// ApplyKey writes value at the dotted key inside doc. Setting "model" also
// updates the chat Model entry of the document.
func ApplyKey(doc map[string]any, key string, value any) {
	deepMerge(doc, NestedValue(key, value), "", SourceOverride, make(Sources))
	if key == "model" {
		if id, ok := value.(string); ok && id != "" {
			syncChatEntry(doc, id)
		}
	}
}

// syncChatEntry points the first chat entry in doc's models list at id, or
// appends a chat entry. Surplus chat roles are removed from later entries and
// entries left with no roles are dropped. Other entries are not touched.
// A document without a models list is left without one: lists replace
// lower layers whole, and Resolve adds the chat entry to the merged list.
func syncChatEntry(doc map[string]any, id string) {
	if _, ok := doc["models"]; !ok {
		return
	}
	entries := modelEntries(doc["models"])
	out := make([]map[string]any, 0, len(entries)+1)
	found := false
	for _, e := range entries {
		roles := stringList(e["roles"])
		if !slices.Contains(roles, RoleChat) {
			out = append(out, e)
			continue
		}
		if !found {
			found = true
			old, _ := e["model"].(string)
			if name, _ := e["name"].(string); name == "" || name == old {
				e["name"] = id
			}
			e["model"] = id
			out = append(out, e)
			continue
		}
		rest := make([]any, 0, len(roles))
		for _, r := range roles {
			if r != RoleChat {
				rest = append(rest, r)
			}
		}
		if len(rest) == 0 {
			continue
		}
		e["roles"] = rest
		out = append(out, e)
	}
	if !found {
		out = append(out, map[string]any{
			"name":     id,
			"provider": "ollama",
			"model":    id,
			"roles":    []any{RoleChat},
		})
	}
	doc["models"] = out
}

func modelEntries(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}

// Package config provides commitgen configuration with a defined precedence:
// CLI overrides > project config > user config > environment variables > defaults.
//
// Paths:
//   - Project: .commitgen/config.toml (relative to repo root)
//   - User: XDG config dir, e.g. ~/.config/commitgen/config.toml (see os.UserConfigDir)
//
// Environment variables (below both config files):
//   - COMMITGEN_MODEL, COMMITGEN_HOST, OLLAMA_HOST (host fallback; scheme optional).
//
// Sources are decoded into generic maps and deep-merged: tables recurse, scalars and
// arrays are replaced wholesale by the higher source. The merged map is then decoded
// into Config. Sources records which layer supplied each leaf key.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"commitgen/cli/internal/erruser"
)

// Role names for Model entries.
const (
	RoleChat       = "chat"
	RoleEmbeddings = "embeddings"
)

// Model is one configured model with the roles it serves.
type Model struct {
	Name     string   `toml:"name" mapstructure:"name"`
	Provider string   `toml:"provider" mapstructure:"provider"`
	Model    string   `toml:"model" mapstructure:"model"`
	Roles    []string `toml:"roles" mapstructure:"roles"`
}

// HasRole reports whether m lists role.
func (m Model) HasRole(role string) bool {
	return slices.Contains(m.Roles, role)
}

// ContextProvider names a source of supplementary prompt context.
// In files it may be written as a plain name (enabled) or as a table.
type ContextProvider struct {
	Provider string `toml:"provider" mapstructure:"provider"`
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
}

// Timeouts for the generation service. Files store integer milliseconds or
// Go duration strings.
type Timeouts struct {
	Connect   time.Duration `mapstructure:"connect"`
	Generate  time.Duration `mapstructure:"generate"`
	ModelPull time.Duration `mapstructure:"model_pull"`
}

// Config is the effective configuration for one invocation.
type Config struct {
	Model           string            `mapstructure:"model"`
	EmbeddingsModel string            `mapstructure:"embeddings_model"`
	Host            string            `mapstructure:"host"`
	Timeouts        Timeouts          `mapstructure:"timeouts"`
	Verbose         bool              `mapstructure:"verbose"`
	Debug           bool              `mapstructure:"debug"`
	Interactive     bool              `mapstructure:"interactive"`
	Quiet           bool              `mapstructure:"quiet"`
	AutoStage       bool              `mapstructure:"auto_stage"`
	AutoModel       bool              `mapstructure:"auto_model"`
	AutoCommit      bool              `mapstructure:"auto_commit"`
	UseEmojis       bool              `mapstructure:"use_emojis"`
	PromptFile      string            `mapstructure:"prompt_file"`
	PromptTemplate  string            `mapstructure:"prompt_template"`
	Context         []ContextProvider `mapstructure:"context"`
	Models          []Model           `mapstructure:"models"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Model          *string
	Host           *string
	Verbose        *bool
	Debug          *bool
	Interactive    *bool
	Quiet          *bool
	AutoStage      *bool
	AutoModel      *bool
	AutoCommit     *bool
	PromptFile     *string
	PromptTemplate *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, project config is RepoRoot/.commitgen/config.toml.
	RepoRoot string
	// UserConfigPath is the user config file path; if empty, the XDG path is used.
	UserConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultModel          = "llama3.2"
	_defaultHost           = "http://localhost:11434"
	_defaultConnectTimeout = 10 * time.Second
	_defaultGenTimeout     = 120 * time.Second
	_defaultPullTimeout    = 300 * time.Second
	_defaultTemplate       = "default"

	projectDirName = ".commitgen"
	configFileName = "config.toml"
	appDirName     = "commitgen"
)

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Model: _defaultModel,
		Host:  _defaultHost,
		Timeouts: Timeouts{
			Connect:   _defaultConnectTimeout,
			Generate:  _defaultGenTimeout,
			ModelPull: _defaultPullTimeout,
		},
		Interactive:    true,
		PromptTemplate: _defaultTemplate,
		Models: []Model{
			{Name: _defaultModel, Provider: "ollama", Model: _defaultModel, Roles: []string{RoleChat}},
		},
	}
}

// defaultsMap mirrors DefaultConfig in the generic shape used for merging.
func defaultsMap() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"model": d.Model,
		"host":  d.Host,
		"timeouts": map[string]any{
			"connect":    d.Timeouts.Connect.Milliseconds(),
			"generate":   d.Timeouts.Generate.Milliseconds(),
			"model_pull": d.Timeouts.ModelPull.Milliseconds(),
		},
		"verbose":          false,
		"debug":            false,
		"interactive":      d.Interactive,
		"quiet":            false,
		"auto_stage":       false,
		"auto_model":       false,
		"auto_commit":      false,
		"use_emojis":       false,
		"prompt_file":      "",
		"prompt_template":  d.PromptTemplate,
		"embeddings_model": "",
		"context":          []any{},
		"models": []any{
			map[string]any{"name": d.Model, "provider": "ollama", "model": d.Model, "roles": []any{RoleChat}},
		},
	}
}

// ChatModel returns the Model entry holding the chat role, if any.
func (c *Config) ChatModel() (Model, bool) {
	for _, m := range c.Models {
		if m.HasRole(RoleChat) {
			return m, true
		}
	}
	return Model{}, false
}

// EmbeddingsModelID returns the model id to use for embeddings: the explicit
// embeddings_model key, else the first Model with the embeddings role.
func (c *Config) EmbeddingsModelID() string {
	if c.EmbeddingsModel != "" {
		return c.EmbeddingsModel
	}
	for _, m := range c.Models {
		if m.HasRole(RoleEmbeddings) {
			return m.Model
		}
	}
	return ""
}

// EnabledContextProviders returns the names of enabled context providers in order.
func (c *Config) EnabledContextProviders() []string {
	var out []string
	for _, p := range c.Context {
		if p.Enabled && strings.TrimSpace(p.Provider) != "" {
			out = append(out, strings.TrimSpace(p.Provider))
		}
	}
	return out
}

// Validate checks the Model invariants: no empty model id and at most one chat entry.
func (c *Config) Validate() error {
	chats := 0
	for i, m := range c.Models {
		if strings.TrimSpace(m.Model) == "" {
			return erruser.Configuration(fmt.Sprintf("Model entry %d (%q) has an empty model id.", i+1, m.Name), nil)
		}
		for _, r := range m.Roles {
			if r != RoleChat && r != RoleEmbeddings {
				return erruser.Configuration(fmt.Sprintf("Model entry %q has unknown role %q; use chat or embeddings.", m.Name, r), nil)
			}
		}
		if m.HasRole(RoleChat) {
			chats++
		}
	}
	if chats > 1 {
		return erruser.Configuration("More than one model entry has the chat role.", nil)
	}
	if strings.TrimSpace(c.Model) == "" {
		return erruser.Configuration("No model configured; set one with: commitgen config set model <name>", nil)
	}
	return nil
}

// syncChatModel keeps the chat Model entry consistent with the top-level model:
// the chat entry's model id is set to c.Model, or a chat entry is created.
func (c *Config) syncChatModel() {
	if c.Model == "" {
		return
	}
	for i := range c.Models {
		if c.Models[i].HasRole(RoleChat) {
			if c.Models[i].Name == "" || c.Models[i].Name == c.Models[i].Model {
				c.Models[i].Name = c.Model
			}
			c.Models[i].Model = c.Model
			return
		}
	}
	c.Models = append(c.Models, Model{Name: c.Model, Provider: "ollama", Model: c.Model, Roles: []string{RoleChat}})
}

// UserConfigPath returns the default user config file path.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", erruser.New("Could not determine config directory.", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// ProjectConfigPath returns the project config file path for repoRoot.
func ProjectConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, projectDirName, configFileName)
}

// Resolution is the result of resolving all sources.
type Resolution struct {
	Config  *Config
	Sources Sources
	// Merged is the deep-merged generic document before decoding.
	Merged map[string]any
	// Files lists the config files that existed and were read, highest precedence first.
	Files []string
}

// Lookup returns the merged value at a dotted key.
func (r *Resolution) Lookup(key string) (any, bool) {
	return lookupPath(r.Merged, key)
}

// Load resolves configuration and returns the effective Config.
// Missing config files are ignored. Invalid TOML or invalid values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	res, err := Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// Resolve merges every source and records provenance.
func Resolve(ctx context.Context, opts LoadOptions) (*Resolution, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	userPath := opts.UserConfigPath
	if userPath == "" {
		p, err := UserConfigPath()
		if err != nil {
			return nil, err
		}
		userPath = p
	}

	layers := []Layer{{Source: SourceDefault, Values: defaultsMap()}}
	layers = append(layers, Layer{Source: SourceEnv, Values: envMap(opts.Env)})

	var files []string
	userDoc, ok, err := readDocument(userPath)
	if err != nil {
		return nil, err
	}
	if ok {
		layers = append(layers, Layer{Source: SourceUser, Path: userPath, Values: userDoc})
		files = append(files, userPath)
	}
	if opts.RepoRoot != "" {
		projectPath := ProjectConfigPath(opts.RepoRoot)
		projectDoc, ok, err := readDocument(projectPath)
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, Layer{Source: SourceProject, Path: projectPath, Values: projectDoc})
			files = append([]string{projectPath}, files...)
		}
	}
	layers = append(layers, Layer{Source: SourceOverride, Values: overridesMap(opts.Overrides)})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	merged, sources := MergeLayers(layers)
	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Host = normalizeHost(cfg.Host)
	cfg.syncChatModel()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolution{Config: cfg, Sources: sources, Merged: merged, Files: files}, nil
}

// env key names for config
const (
	envModel      = "COMMITGEN_MODEL"
	envHost       = "COMMITGEN_HOST"
	envOllamaHost = "OLLAMA_HOST"
)

func envMap(env []string) map[string]any {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	out := make(map[string]any)
	if v := vals[envOllamaHost]; v != "" {
		out["host"] = v
	}
	if v := vals[envHost]; v != "" {
		out["host"] = v
	}
	if v := vals[envModel]; v != "" {
		out["model"] = v
	}
	return out
}

func overridesMap(o *Overrides) map[string]any {
	out := make(map[string]any)
	if o == nil {
		return out
	}
	setStr := func(key string, v *string) {
		if v != nil && *v != "" {
			out[key] = *v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = *v
		}
	}
	setStr("model", o.Model)
	setStr("host", o.Host)
	setBool("verbose", o.Verbose)
	setBool("debug", o.Debug)
	setBool("interactive", o.Interactive)
	setBool("quiet", o.Quiet)
	setBool("auto_stage", o.AutoStage)
	setBool("auto_model", o.AutoModel)
	setBool("auto_commit", o.AutoCommit)
	setStr("prompt_file", o.PromptFile)
	setStr("prompt_template", o.PromptTemplate)
	return out
}

// normalizeHost adds a scheme to bare host:port values (OLLAMA_HOST style) and
// drops a trailing slash.
func normalizeHost(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return _defaultHost
	}
	if !strings.Contains(h, "://") {
		h = "http://" + h
	}
	return strings.TrimSuffix(h, "/")
}

// Package run implements one commit-message cycle: analyze the pending
// changes, assemble the prompt, generate a message and let the operator act
// on it. Regenerate loops back to generation. Used by the CLI and by tests.
package run

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"commitgen/cli/internal/changes"
	"commitgen/cli/internal/clip"
	"commitgen/cli/internal/commitmsg"
	"commitgen/cli/internal/config"
	"commitgen/cli/internal/contextprov"
	"commitgen/cli/internal/diff"
	"commitgen/cli/internal/embed"
	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/git"
	"commitgen/cli/internal/history"
	"commitgen/cli/internal/interact"
	"commitgen/cli/internal/ollama"
	"commitgen/cli/internal/prompt"
	"commitgen/cli/internal/tokens"
	"commitgen/cli/internal/trace"
	"commitgen/cli/internal/tty"
	"commitgen/cli/internal/ui"
)

// outcomeFailed is the history outcome of a cycle that produced no message
// or whose commit failed.
const outcomeFailed = "failed"

// Options configures Run. Config is required; everything else has a usable
// default.
type Options struct {
	// Dir is any directory inside the repository; empty means the current directory.
	Dir    string
	Config *config.Config
	Log    zerolog.Logger
	RunID  string
	// Out receives the message panel, status lines and printed commands.
	Out io.Writer
	// Trace dumps prompts and raw responses; nil disables it.
	Trace *trace.Tracer
	// TemplatesPath is an optional user prompt template catalog.
	TemplatesPath string
	// HistoryDir receives one record per generated message; empty disables history.
	HistoryDir string

	// Prompter defaults to a key prompter on the terminal, with its capabilities.
	Prompter interact.Prompter
	Caps     tty.Capabilities
	// Clipboard defaults to the system clipboard.
	Clipboard clip.Clipboard
	// HTTPClient defaults to one with the configured connect timeout.
	HTTPClient *http.Client
	// Embedder overrides the Ollama embedder built from the config.
	Embedder prompt.Embedder
	// Sleep overrides the wait between generation attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary describes a finished run.
type Summary struct {
	Outcome  interact.Outcome
	Message  string
	Model    string
	Strategy prompt.Strategy
	// Generations counts generated messages, including regenerated ones.
	Generations int
	// Reanalyzed counts regenerations that saw a changed working tree.
	Reanalyzed  int
	Interaction *interact.Result
}

// cycle holds what one analysis produced and can be reused while the
// working tree stays the same.
type cycle struct {
	changes     *changes.ChangeSet
	prompt      *prompt.Prompt
	fingerprint string
	tokens      tokens.Report
}

// Run executes the cycle until the operator commits, prints, copies or
// cancels. A no-changes error is returned as is; callers treat it as
// information.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("run: config required")
	}
	log := opts.Log
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	printer := ui.New(out, cfg.Quiet)

	repo, err := git.Open(ctx, opts.Dir)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = ollama.NewHTTPClient(cfg.Timeouts.Connect)
	}
	client := ollama.NewClient(cfg.Host, httpClient)
	model := resolveModel(ctx, client, cfg, log, printer)

	system, err := prompt.SystemPrompt(prompt.SystemOptions{
		PromptFile:    cfg.PromptFile,
		Template:      cfg.PromptTemplate,
		TemplatesPath: opts.TemplatesPath,
		UseEmojis:     cfg.UseEmojis,
	})
	if err != nil {
		return nil, err
	}

	assembler := &prompt.Assembler{
		System:    system,
		Providers: cfg.EnabledContextProviders(),
		Context:   contextprov.Input{Root: repo.Root, Repo: repo},
		Log:       log,
	}
	if len(assembler.Providers) == 0 {
		assembler.Embedder = embedderFor(cfg, opts.Embedder, log)
	}

	genOpts := &ollama.GenerateOptions{}
	engine := &commitmsg.Engine{
		Client:  client,
		Model:   model,
		Options: genOpts,
		Timeout: cfg.Timeouts.Generate,
		Sleep:   opts.Sleep,
		Log:     log,
		OnAttempt: func(a commitmsg.Attempt) {
			if a.Outcome == commitmsg.OutcomeRetryable {
				printer.Warn("Generation attempt %d failed, retrying in %s.", a.Number, a.Delay)
			}
		},
	}

	prompter, caps := opts.Prompter, opts.Caps
	if prompter == nil {
		kp := tty.NewKeyPrompter()
		prompter, caps = kp, kp.Caps
	}
	clipboard := opts.Clipboard
	if clipboard == nil {
		clipboard = clip.System{}
	}

	analyzer := changes.New(repo, log)
	sum := &Summary{Model: model}
	var cur *cycle
	for {
		if cur == nil || !unchanged(ctx, repo, cur.fingerprint, log) {
			if cur != nil {
				sum.Reanalyzed++
			}
			cur, err = analyze(ctx, analyzer, assembler, repo, cfg.AutoStage)
			if err != nil {
				return sum, err
			}
			if cur.changes.Truncated {
				printer.Warn("Diff truncated to %d of %d lines.", diff.KeepLines, cur.changes.RawLines)
			}
			if cur.tokens.Warning != "" {
				log.Warn().Msg(cur.tokens.Warning)
			}
		}
		genOpts.NumCtx = cur.tokens.Context
		sum.Strategy = cur.prompt.Strategy

		opts.Trace.Section("Prompt")
		opts.Trace.Printf("model=%s strategy=%s tokens=%d num_ctx=%d staged=%t\n",
			model, cur.prompt.Strategy, cur.tokens.PromptTokens, cur.tokens.Context, cur.changes.Staged)
		opts.Trace.Printf("%s\n", cur.prompt.Text)

		printer.Info("Generating a commit message with %s.", model)
		res, genErr := engine.Generate(ctx, cur.prompt.Text, cur.changes.Bumps)
		sum.Generations++
		if res != nil {
			opts.Trace.Block("Raw response", res.Raw)
			opts.Trace.Printf("attempts: %s\n", commitmsg.Summary(res.Attempts))
		}
		rec := newRecord(opts.RunID, repo.Root, model, cur, res)
		if genErr != nil {
			rec.Outcome = outcomeFailed
			rec.Error = genErr.Error()
			appendHistory(opts.HistoryDir, rec, log)
			return sum, genErr
		}
		sum.Message = res.Message
		printer.Message("Commit message", res.Message)

		ctrl := &interact.Controller{
			Settings: interact.Settings{
				Interactive:        cfg.Interactive,
				AutoCommit:         cfg.AutoCommit,
				AutoStage:          cfg.AutoStage,
				Staged:             cur.changes.Staged,
				ClipboardAvailable: clipboard.Available(),
				Caps:               caps,
			},
			VCS:       repo,
			Prompter:  prompter,
			Clipboard: clipboard,
			Out:       out,
			Log:       log,
		}
		ires, err := ctrl.Run(ctx, res.Message)
		sum.Interaction = ires
		if err != nil {
			rec.Outcome = outcomeFailed
			rec.Error = err.Error()
			appendHistory(opts.HistoryDir, rec, log)
			return sum, err
		}
		sum.Outcome = ires.Outcome
		rec.Outcome = ires.Outcome.String()
		appendHistory(opts.HistoryDir, rec, log)
		report(printer, ires)
		if ires.Outcome != interact.OutcomeRegenerate {
			return sum, nil
		}
	}
}

// resolveModel returns the chat model to use. With auto-model on and the
// configured model missing, an installed one is picked instead.
func resolveModel(ctx context.Context, client *ollama.Client, cfg *config.Config, log zerolog.Logger, printer *ui.Printer) string {
	model := cfg.Model
	if !cfg.AutoModel {
		return model
	}
	check, err := client.Check(ctx, model)
	if err != nil {
		log.Debug().Err(err).Msg("model check failed, keeping the configured model")
		return model
	}
	if check.ModelPresent {
		return model
	}
	picked, ok := ollama.PickModel(check.ModelNames)
	if !ok {
		log.Warn().Str("model", model).Msg("model not installed and no other chat model found")
		return model
	}
	printer.Info("Model %s is not installed; using %s.", model, picked)
	log.Info().Str("configured", model).Str("model", picked).Msg("auto-selected model")
	return picked
}

// embedderFor returns the override, or an Ollama embedder when the config
// names an embeddings model, or nil.
func embedderFor(cfg *config.Config, override prompt.Embedder, log zerolog.Logger) prompt.Embedder {
	if override != nil {
		return override
	}
	id := cfg.EmbeddingsModelID()
	if id == "" {
		return nil
	}
	e, err := embed.New(id, cfg.Host, 0)
	if err != nil {
		log.Debug().Err(err).Msg("embeddings disabled")
		return nil
	}
	return e
}

func analyze(ctx context.Context, a *changes.Analyzer, asm *prompt.Assembler, repo *git.Client, autoStage bool) (*cycle, error) {
	cs, err := a.Analyze(ctx, changes.Options{AutoStage: autoStage})
	if err != nil {
		return nil, err
	}
	p, err := asm.Assemble(ctx, cs)
	if err != nil {
		return nil, err
	}
	fp, err := repo.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return &cycle{changes: cs, prompt: p, fingerprint: fp, tokens: tokens.Check(p.Text)}, nil
}

// unchanged reports whether the working tree still has fingerprint fp. A
// failed fingerprint counts as changed.
func unchanged(ctx context.Context, repo *git.Client, fp string, log zerolog.Logger) bool {
	now, err := repo.Fingerprint(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("fingerprint failed, analyzing again")
		return false
	}
	if now != fp {
		log.Info().Msg("working tree changed, analyzing again")
		return false
	}
	log.Debug().Msg("working tree unchanged, reusing prompt")
	return true
}

func report(p *ui.Printer, res *interact.Result) {
	if res.TimedOut {
		p.Warn("No answer in time; took the default.")
	}
	switch res.Outcome {
	case interact.OutcomeCommitted:
		p.Success("Committed.")
		switch {
		case res.PushErr != nil:
			p.Warn("%v", res.PushErr)
			if hint := erruser.HintOf(res.PushErr); hint != "" {
				p.Hint("%s", hint)
			}
		case res.Pushed:
			p.Success("Pushed.")
		}
	case interact.OutcomeCopied:
		p.Success("Copied the message to the clipboard.")
	case interact.OutcomeRegenerate:
		p.Info("Regenerating.")
	case interact.OutcomeCancelled:
		p.Info("Cancelled.")
	}
}

func newRecord(runID, root, model string, c *cycle, res *commitmsg.Result) history.Record {
	rec := history.NewRecord()
	rec.RunID = runID
	rec.RepoRoot = root
	rec.Model = model
	rec.Strategy = string(c.prompt.Strategy)
	rec.Staged = c.changes.Staged
	rec.Truncated = c.changes.Truncated
	if res != nil {
		rec.Attempts = len(res.Attempts)
		rec.Message = res.Message
		if u := res.Usage; u != nil {
			rec.PromptTokens = u.PromptEvalCount
			rec.EvalTokens = u.EvalCount
			rec.DurationMs = u.TotalDuration.Milliseconds()
		}
	}
	return rec
}

func appendHistory(dir string, rec history.Record, log zerolog.Logger) {
	if dir == "" {
		return
	}
	if err := history.Append(dir, rec, history.DefaultMaxRecords); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("could not write history")
	}
}

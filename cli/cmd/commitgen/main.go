package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"commitgen/cli/internal/config"
	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/git"
	"commitgen/cli/internal/history"
	"commitgen/cli/internal/logging"
	"commitgen/cli/internal/ollama"
	"commitgen/cli/internal/prompt"
	"commitgen/cli/internal/run"
	"commitgen/cli/internal/trace"
	"commitgen/cli/internal/tty"
	"commitgen/cli/internal/ui"
	"commitgen/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// exitInterrupted is the conventional exit code after SIGINT.
const exitInterrupted = 130

const defaultHistoryCount = 10

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing so that
// main.go can meet per-file coverage requirements.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer tty.RestoreAll()
	return runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// app carries the writers and root flags shared by every command.
type app struct {
	stdout, stderr io.Writer

	dir            string
	model          string
	host           string
	template       string
	promptFile     string
	autoStage      bool
	autoCommit     bool
	autoModel      bool
	yes            bool
	nonInteractive bool
	quiet          bool
	verbose        bool
	debug          bool
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return a.handleError(err)
	}
	return 0
}

// handleError prints err and returns the exit code. No-changes is
// information, not failure.
func (a *app) handleError(err error) int {
	var exitErr errExit
	if errors.As(err, &exitErr) {
		return int(exitErr)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.stderr, "Interrupted.")
		return exitInterrupted
	}
	if erruser.Is(err, erruser.KindNoChanges) {
		fmt.Fprintln(a.stdout, err)
		if hint := erruser.HintOf(err); hint != "" {
			fmt.Fprintf(a.stdout, "Hint: %s\n", hint)
		}
		return 0
	}
	fmt.Fprintln(a.stderr, err)
	if a.debug {
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(a.stderr, "Details: %v\n", u)
		}
	}
	if hint := erruser.HintOf(err); hint != "" {
		fmt.Fprintf(a.stderr, "Hint: %s\n", hint)
	}
	return 1
}

func (a *app) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "commitgen",
		Short:         "Generate commit messages from your changes with a local model",
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runGenerate,
	}
	f := cmd.Flags()
	f.StringVarP(&a.template, "template", "t", "", "Prompt template name")
	f.StringVar(&a.promptFile, "prompt-file", "", "Read the system prompt from this file")
	f.BoolVarP(&a.autoStage, "auto-stage", "a", false, "Stage all changes when nothing is staged")
	f.BoolVar(&a.autoCommit, "auto-commit", false, "Commit and push on accept")
	f.BoolVar(&a.autoModel, "auto-model", false, "Use an installed model when the configured one is missing")
	f.BoolVarP(&a.yes, "yes", "y", false, "Accept the message without asking")
	f.BoolVar(&a.nonInteractive, "non-interactive", false, "Never prompt; same as --yes")
	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.dir, "dir", "C", "", "Run in this directory instead of the current one")
	pf.StringVarP(&a.model, "model", "m", "", "Model to use (overrides config)")
	pf.StringVar(&a.host, "host", "", "Ollama server URL (overrides config)")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Print only the message and errors")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log progress to stderr")
	pf.BoolVar(&a.debug, "debug", false, "Log debug detail and dump the prompt and raw response")

	cmd.AddCommand(a.newConfigCmd())
	cmd.AddCommand(a.newModelsCmd())
	cmd.AddCommand(a.newTestCmd())
	cmd.AddCommand(a.newHistoryCmd())
	return cmd
}

// overrides returns the config overrides for flags the user set.
func (a *app) overrides(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	str := func(name string, v string, dst **string) {
		if changed(name) {
			*dst = &v
		}
	}
	flag := func(name string, v bool, dst **bool) {
		if changed(name) {
			*dst = &v
		}
	}
	str("model", a.model, &o.Model)
	str("host", a.host, &o.Host)
	str("template", a.template, &o.PromptTemplate)
	str("prompt-file", a.promptFile, &o.PromptFile)
	flag("auto-stage", a.autoStage, &o.AutoStage)
	flag("auto-commit", a.autoCommit, &o.AutoCommit)
	flag("auto-model", a.autoModel, &o.AutoModel)
	flag("quiet", a.quiet, &o.Quiet)
	flag("verbose", a.verbose, &o.Verbose)
	flag("debug", a.debug, &o.Debug)
	if a.yes || a.nonInteractive {
		no := false
		o.Interactive = &no
	}
	return o
}

// workDir returns --dir or the current directory.
func (a *app) workDir() (string, error) {
	if a.dir != "" {
		return filepath.Abs(a.dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", erruser.New("Could not determine current directory.", err)
	}
	return cwd, nil
}

// repoRoot returns the repository root of dir, or "" outside a repository.
func repoRoot(ctx context.Context, dir string) string {
	root, err := git.RepoRoot(ctx, dir)
	if err != nil {
		return ""
	}
	return root
}

// load resolves the configuration for the current directory.
func (a *app) load(cmd *cobra.Command) (*config.Config, string, error) {
	dir, err := a.workDir()
	if err != nil {
		return nil, "", err
	}
	root := repoRoot(cmd.Context(), dir)
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{RepoRoot: root, Overrides: a.overrides(cmd)})
	if err != nil {
		return nil, "", err
	}
	a.debug = cfg.Debug
	return cfg, dir, nil
}

func (a *app) logger(cfg *config.Config) (zerolog.Logger, string) {
	return logging.New(a.stderr, logging.Options{
		Quiet:   cfg.Quiet,
		Verbose: cfg.Verbose,
		Debug:   cfg.Debug,
		NoColor: color.NoColor,
	})
}

func (a *app) runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, dir, err := a.load(cmd)
	if err != nil {
		return err
	}
	log, runID := a.logger(cfg)

	var tracer *trace.Tracer
	if cfg.Debug {
		tracer = trace.New(a.stderr)
	}
	historyDir, err := history.DefaultDir()
	if err != nil {
		log.Debug().Err(err).Msg("history disabled")
		historyDir = ""
	}
	templatesPath := ""
	if p, err := config.UserConfigPath(); err == nil {
		templatesPath = filepath.Join(filepath.Dir(p), prompt.TemplatesFileName)
	}

	_, err = run.Run(cmd.Context(), run.Options{
		Dir:           dir,
		Config:        cfg,
		Log:           log,
		RunID:         runID,
		Out:           a.stdout,
		Trace:         tracer,
		TemplatesPath: templatesPath,
		HistoryDir:    historyDir,
	})
	return err
}

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigShow,
	}
	show.Flags().Bool("sources", false, "Show where each value came from")

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a configuration value (user file by default)",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runConfigSet,
	}
	set.Flags().Bool("user", false, "Write the user config file")
	set.Flags().Bool("project", false, "Write the project config file")
	set.Flags().Bool("all", false, "Write every existing config file")
	set.MarkFlagsMutuallyExclusive("user", "project", "all")

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, k := range config.Keys() {
				fmt.Fprintf(tw, "%s\t%s\n", k, config.KeyHelp(k))
			}
			return tw.Flush()
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := a.workDir()
			if err != nil {
				return err
			}
			store, err := config.NewStore(repoRoot(cmd.Context(), dir), "")
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "user: %s\n", store.UserPath)
			if store.ProjectPath != "" {
				fmt.Fprintf(a.stdout, "project: %s\n", store.ProjectPath)
			}
			return nil
		},
	}

	cmd.AddCommand(show, set, keys, path)
	return cmd
}

func (a *app) runConfigShow(cmd *cobra.Command, _ []string) error {
	dir, err := a.workDir()
	if err != nil {
		return err
	}
	res, err := config.Resolve(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot(cmd.Context(), dir)})
	if err != nil {
		return err
	}
	withSources, _ := cmd.Flags().GetBool("sources")
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, k := range res.Sources.Keys() {
		v, _ := res.Lookup(k)
		if withSources {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", k, formatValue(v), res.Sources[k])
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", k, formatValue(v))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if withSources {
		for _, f := range res.Files {
			fmt.Fprintf(a.stdout, "file: %s\n", f)
		}
	}
	return nil
}

// formatValue renders a merged config value on one line.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + formatValue(x[k])
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func (a *app) runConfigSet(cmd *cobra.Command, args []string) error {
	dir, err := a.workDir()
	if err != nil {
		return err
	}
	root := repoRoot(cmd.Context(), dir)
	target := config.TargetUser
	if v, _ := cmd.Flags().GetBool("project"); v {
		if root == "" {
			return erruser.Repository("Not inside a git repository.", nil).
				WithHint("Run from a repository to write its project config.")
		}
		target = config.TargetProject
	}
	if v, _ := cmd.Flags().GetBool("all"); v {
		target = config.TargetAll
	}
	store, err := config.NewStore(root, "")
	if err != nil {
		return err
	}
	written, err := store.SetKey(args[0], args[1], target)
	p := ui.New(a.stdout, a.quiet)
	for _, path := range written {
		p.Success("Set %s in %s", args[0], path)
	}
	return err
}

func (a *app) newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or pull Ollama models",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List installed models",
		Args:  cobra.NoArgs,
		RunE:  a.runModelsList,
	}
	pull := &cobra.Command{
		Use:   "pull NAME",
		Short: "Download a model to the Ollama server",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runModelsPull,
	}
	cmd.AddCommand(list, pull)
	return cmd
}

func (a *app) client(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(cfg.Host, ollama.NewHTTPClient(cfg.Timeouts.Connect))
}

func (a *app) runModelsList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := a.load(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Connect)
	defer cancel()
	models, err := a.client(cfg).Tags(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, m := range models {
		mark := " "
		if ollama.HasModel([]string{m.Name}, cfg.Model) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, m.Name, formatSize(m.Size), m.Details.ParameterSize)
	}
	return tw.Flush()
}

// formatSize renders a byte count in GB or MB.
func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= 1<<30 {
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	}
	return fmt.Sprintf("%d MB", n/mb)
}

func (a *app) runModelsPull(cmd *cobra.Command, args []string) error {
	cfg, _, err := a.load(cmd)
	if err != nil {
		return err
	}
	p := ui.New(a.stdout, cfg.Quiet)
	p.Info("Pulling %s (this can take a while).", args[0])
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.ModelPull)
	defer cancel()
	start := time.Now()
	if err := a.client(cfg).Pull(ctx, args[0]); err != nil {
		return err
	}
	p.Success("Pulled %s in %s.", args[0], time.Since(start).Round(time.Second))
	return nil
}

func (a *app) newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the Ollama connection and the configured model",
		Args:  cobra.NoArgs,
		RunE:  a.runTest,
	}
}

func (a *app) runTest(cmd *cobra.Command, _ []string) error {
	cfg, _, err := a.load(cmd)
	if err != nil {
		return err
	}
	p := ui.New(a.stdout, false)
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Connect)
	defer cancel()
	res, err := a.client(cfg).Check(ctx, cfg.Model)
	if err != nil {
		p.Error("Ollama is not reachable at %s.", cfg.Host)
		if errors.Is(err, ollama.ErrUnreachable) || erruser.Retryable(err) {
			p.Hint("Start it with: ollama serve")
		}
		if u := errors.Unwrap(err); cfg.Debug && u != nil {
			p.Hint("Details: %v", u)
		}
		return errExit(2)
	}
	p.Success("Ollama OK at %s", cfg.Host)
	if !res.ModelPresent {
		p.Error("Model %s is not installed.", cfg.Model)
		p.Hint("Run: commitgen models pull %s", cfg.Model)
		return errExit(1)
	}
	p.Success("Model %s is installed", cfg.Model)
	if id := cfg.EmbeddingsModelID(); id != "" {
		if ollama.HasModel(res.ModelNames, id) {
			p.Success("Embeddings model %s is installed", id)
		} else {
			p.Warn("Embeddings model %s is not installed; prompts will not use embeddings.", id)
		}
	}
	return nil
}

func (a *app) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently generated messages",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}
	cmd.Flags().IntP("number", "n", defaultHistoryCount, "How many records to show")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("number")
	if n <= 0 {
		return erruser.Configuration("The record count must be positive.", nil)
	}
	dir, err := history.DefaultDir()
	if err != nil {
		return erruser.New("Could not determine the history directory.", err)
	}
	recs, err := history.Tail(dir, n)
	if err != nil {
		return erruser.New("Could not read history.", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.stdout, "No history yet.")
		return nil
	}
	writeHistory(a.stdout, recs)
	return nil
}

// writeHistory prints one line per record: time, outcome, model and the
// message summary line.
func writeHistory(w io.Writer, recs []history.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range recs {
		summary, _, _ := strings.Cut(r.Message, "\n")
		if summary == "" && r.Error != "" {
			summary = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Time.Local().Format("2006-01-02 15:04"), r.Outcome, r.Model, summary)
	}
	tw.Flush()
}

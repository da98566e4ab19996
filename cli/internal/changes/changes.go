// Package changes reads the pending changes of a repository and describes
// them for prompt assembly.
//
// Analyze prefers the staged diff. When nothing is staged it falls back to the
// unstaged diff, staging everything first when auto-stage is requested. The
// diff is normalized (carriage returns removed) and truncated for size; the
// per-file description and version bumps are computed from the full diff.
package changes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"commitgen/cli/internal/diff"
	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/git"
)

// VCS is the subset of git operations the analyzer needs.
type VCS interface {
	Diff(ctx context.Context, staged bool) (string, error)
	NameStatus(ctx context.Context, staged bool) ([]git.FileStatus, error)
	NumStats(ctx context.Context, staged bool) ([]git.NumStat, error)
	AddAll(ctx context.Context) error
	Untracked(ctx context.Context) ([]string, error)
}

// Stats are the numstat totals of a change set.
type Stats struct {
	Files      int
	Insertions int
	Deletions  int
}

// ChangeSet is the description of one analysis. It is built fresh by Analyze
// and not modified afterwards.
type ChangeSet struct {
	// Diff is the normalized, possibly truncated diff text.
	Diff string
	// RawLines is the line count of the full normalized diff.
	RawLines    int
	Truncated   bool
	Staged      bool
	Stats       Stats
	Files       []FileChange
	Description string
	Bumps       []VersionBump
}

// Options controls Analyze.
type Options struct {
	AutoStage bool
}

// Analyzer produces ChangeSets from a VCS.
type Analyzer struct {
	VCS VCS
	Log zerolog.Logger
}

// New returns an Analyzer over vcs.
func New(vcs VCS, log zerolog.Logger) *Analyzer {
	return &Analyzer{VCS: vcs, Log: log}
}

// Analyze builds a ChangeSet. It returns a no-changes error when neither the
// index nor the working tree differ from HEAD, unless auto-stage is on and
// there are untracked files to add.
func (a *Analyzer) Analyze(ctx context.Context, opts Options) (*ChangeSet, error) {
	staged := true
	raw, err := a.VCS.Diff(ctx, true)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		raw, err = a.VCS.Diff(ctx, false)
		if err != nil {
			return nil, err
		}
		if raw == "" {
			untracked, err := a.VCS.Untracked(ctx)
			if err != nil {
				return nil, err
			}
			switch {
			case len(untracked) == 0:
				return nil, erruser.NoChanges("No changes to describe.").
					WithHint("Edit some files, then run commitgen again.")
			case !opts.AutoStage:
				return nil, erruser.NoChanges("No changes to describe; only new, untracked files.").
					WithHint(fmt.Sprintf("Stage the %s with git add, or run with --auto-stage.", pluralize(len(untracked), "new file")))
			}
		}
		staged = false
		if opts.AutoStage {
			a.Log.Info().Msg("staging all changes")
			if err := a.VCS.AddAll(ctx); err != nil {
				return nil, err
			}
			raw, err = a.VCS.Diff(ctx, true)
			if err != nil {
				return nil, err
			}
			staged = true
		} else {
			a.Log.Warn().Msg("Changes are not staged; stage them before committing.")
		}
	}
	return a.build(ctx, raw, staged)
}

func (a *Analyzer) build(ctx context.Context, raw string, staged bool) (*ChangeSet, error) {
	full := diff.Normalize(raw)
	tr := diff.Truncate(full)

	statuses, err := a.VCS.NameStatus(ctx, staged)
	if err != nil {
		return nil, err
	}
	numstats, err := a.VCS.NumStats(ctx, staged)
	if err != nil {
		return nil, err
	}
	parsed, err := diff.ParseFiles(full)
	if err != nil {
		return nil, erruser.New("Could not parse the diff.", err)
	}

	files := fileChanges(statuses, diff.ByPath(parsed))
	cs := &ChangeSet{
		Diff:        tr.Text,
		RawLines:    tr.TotalLines,
		Truncated:   tr.Truncated,
		Staged:      staged,
		Stats:       totals(numstats),
		Files:       files,
		Description: Describe(files),
		Bumps:       DetectBumps(parsed),
	}
	a.Log.Debug().
		Bool("staged", cs.Staged).
		Bool("truncated", cs.Truncated).
		Int("files", cs.Stats.Files).
		Int("insertions", cs.Stats.Insertions).
		Int("deletions", cs.Stats.Deletions).
		Int("bumps", len(cs.Bumps)).
		Msg("analyzed changes")
	return cs, nil
}

func totals(numstats []git.NumStat) Stats {
	s := Stats{Files: len(numstats)}
	for _, n := range numstats {
		s.Insertions += n.Added
		s.Deletions += n.Deleted
	}
	return s
}

// Summary is the one-line stats summary used in prompts.
func (s Stats) Summary() string {
	return pluralize(s.Files, "file") + " changed, " +
		pluralize(s.Insertions, "insertion") + "(+), " +
		pluralize(s.Deletions, "deletion") + "(-)"
}

package commitmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"commitgen/cli/internal/changes"
)

func TestClean(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"  Add feature  \n", "Add feature"},
		{"```\nAdd feature\n\nBody\n```", "Add feature\n\nBody"},
		{"```text\nAdd feature\n```", "Add feature"},
		{`"Add feature"`, "Add feature"},
		{"'Add feature'", "Add feature"},
		{`Say "hi" and "bye"`, `Say "hi" and "bye"`},
		{`"a" then "b"`, `"a" then "b"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}
}

func TestPostProcess(t *testing.T) {
	t.Parallel()
	pkg := changes.VersionBump{File: "web/package.json", Old: "1.0.0", New: "1.0.1"}
	cargo := changes.VersionBump{File: "Cargo.toml", Old: "0.3.0", New: "0.4.0"}
	tests := []struct {
		name  string
		msg   string
		bumps []changes.VersionBump
		want  string
	}{
		{
			name:  "no_bumps",
			msg:   "Move from A to B",
			bumps: nil,
			want:  "Move from A to B",
		},
		{
			name:  "single_bump_any_line",
			msg:   "Update deps\n\n* Bump from 1.0 to 9.9",
			bumps: []changes.VersionBump{pkg},
			want:  "Update deps\n\n* bump version in web/package.json from 1.0.0 to 1.0.1",
		},
		{
			name:  "numbered_bullet_kept",
			msg:   "1. version FROM 1 TO 2",
			bumps: []changes.VersionBump{pkg},
			want:  "1. bump version in web/package.json from 1.0.0 to 1.0.1",
		},
		{
			name:  "multiple_bumps_by_file",
			msg:   "- Cargo.toml from 0.3 to 0.5\n- package.json from 1 to 2\n- move from x to y",
			bumps: []changes.VersionBump{pkg, cargo},
			want:  "- bump version in Cargo.toml from 0.3.0 to 0.4.0\n- bump version in web/package.json from 1.0.0 to 1.0.1\n- move from x to y",
		},
		{
			name:  "no_match_untouched",
			msg:   "Add feature\n- refactor parser",
			bumps: []changes.VersionBump{pkg},
			want:  "Add feature\n- refactor parser",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PostProcess(tt.msg, tt.bumps), tt.name)
	}
}

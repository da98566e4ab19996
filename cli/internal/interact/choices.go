package interact

import (
	"strings"

	"commitgen/cli/internal/tty"
)

// Action is what the operator asked for.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionCopy       Action = "copy"
	ActionRegenerate Action = "regenerate"
	ActionCancel     Action = "cancel"
)

// Choice is one offered action.
type Choice struct {
	Action Action
	Key    rune
	Label  string
}

// Settings are the inputs that decide which choices are offered and how
// accept behaves.
type Settings struct {
	Interactive        bool
	AutoCommit         bool
	AutoStage          bool
	Staged             bool
	ClipboardAvailable bool
	Caps               tty.Capabilities
}

// Choices returns the actions offered for s, in display order. Accept and
// cancel are always present.
func Choices(s Settings) []Choice {
	accept := Choice{Action: ActionAccept, Key: 'y', Label: "copy command"}
	if s.AutoCommit {
		accept.Label = "commit changes"
	}
	out := []Choice{accept}
	if s.Interactive && s.ClipboardAvailable && !s.AutoCommit {
		out = append(out, Choice{Action: ActionCopy, Key: 'c', Label: "copy to clipboard"})
	}
	if s.Interactive {
		out = append(out, Choice{Action: ActionRegenerate, Key: 'r', Label: "regenerate"})
	}
	return append(out, Choice{Action: ActionCancel, Key: 'n', Label: "cancel"})
}

// DefaultAction is taken on Enter and on prompt timeout: accept, unless
// accepting would commit.
func DefaultAction(s Settings) Action {
	if s.AutoCommit {
		return ActionCancel
	}
	return ActionAccept
}

// Quote returns msg as a double-quoted shell word, escaping backslash,
// double quote, dollar and backtick.
func Quote(msg string) string {
	return `"` + shellEscaper.Replace(msg) + `"`
}

var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

// CommitCommand is the command that commits msg. Unstaged changes are
// staged first.
func CommitCommand(msg string, staged bool) string {
	cmd := "git commit -m " + Quote(msg)
	if !staged {
		cmd = "git add -A && " + cmd
	}
	return cmd
}

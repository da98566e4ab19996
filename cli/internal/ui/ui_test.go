package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_panel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Message("Commit message", "Add login form\n\nValidate email input.\n")
	out := buf.String()
	assert.Contains(t, out, "Commit message")
	assert.Contains(t, out, "Add login form")
	assert.Contains(t, out, "Validate email input.")
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "╯")
}

func TestMessage_quietPrintsBareMessage(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Message("Commit message", "Fix typo\n")
	assert.Equal(t, "Fix typo\n", buf.String())
}

func TestStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)
	p.Info("analyzing %d files", 3)
	p.Success("committed")
	p.Warn("prompt is large")
	p.Error("push failed")
	p.Hint("run git push")
	out := buf.String()
	for _, want := range []string{"analyzing 3 files", "✓ committed", "! prompt is large", "✗ push failed", "  run git push"} {
		assert.Contains(t, out, want)
	}
}

func TestInfo_quietSuppressed(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)
	p.Info("hidden")
	p.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

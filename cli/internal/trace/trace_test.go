package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_nilWriter_returnsTracer(t *testing.T) {
	tr := New(nil)
	if tr == nil {
		t.Error("New(nil) returned nil")
	}
}

func TestEnabled(t *testing.T) {
	if New(nil).Enabled() {
		t.Error("Enabled() with nil writer = true, want false")
	}
	var nilTracer *Tracer
	if nilTracer.Enabled() {
		t.Error("nil Tracer Enabled() = true")
	}
	var buf bytes.Buffer
	if !New(&buf).Enabled() {
		t.Error("Enabled() with non-nil writer = false, want true")
	}
}

func TestNilWriter_noOutputNoPanic(t *testing.T) {
	tr := New(nil)
	tr.Section("Prompt")
	tr.Printf("model=%s\n", "llama3.2")
	tr.Block("Response", "text")
}

func TestSection_writesHeader(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Section("Prompt")
	got := buf.String()
	if !strings.Contains(got, "[commitgen:trace] === Prompt ===") || !strings.HasSuffix(got, "\n") {
		t.Errorf("Section wrote %q", got)
	}
}

func TestPrintf_writesFormatted(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Printf("attempts=%d\n", 2)
	if got, want := buf.String(), "attempts=2\n"; got != want {
		t.Errorf("Printf wrote %q, want %q", got, want)
	}
}

func TestBlock_singleTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Block("Raw response", "Add feature\n\n\n")
	got := buf.String()
	if !strings.Contains(got, "=== Raw response ===") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.HasSuffix(got, "Add feature\n") {
		t.Errorf("body not trimmed: %q", got)
	}
}

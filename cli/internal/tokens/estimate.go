// Package tokens estimates prompt size so the generation request can ask for
// a large enough context window and warn when the prompt will not fit.
// Estimation uses a byte-based chars/4 heuristic.
package tokens

import (
	"fmt"
	"math"
)

// charsPerToken is the divisor for the simple byte-based estimator
// (roughly 4 bytes per token for typical English/code).
const charsPerToken = 4

const (
	// DefaultResponseReserve is the number of tokens kept free for the
	// commit message itself.
	DefaultResponseReserve = 512
	// DefaultWarnThreshold is the fraction of the context window at which
	// Check warns.
	DefaultWarnThreshold = 0.9
	// MinContext is Ollama's default context window.
	MinContext = 2048
	// MaxContext caps the window requested for large prompts.
	MaxContext = 32768
)

// Estimate returns an estimated token count for the given prompt text.
// It uses a simple heuristic: (len(prompt)+3)/4 (bytes), so 0–3 bytes
// map to 1 token, 4–7 to 2, etc. Empty string returns 0.
func Estimate(prompt string) int {
	n := len(prompt)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// ContextSize returns the context window to request for a prompt of
// promptTokens: the smallest power of two from MinContext up that holds the
// prompt plus DefaultResponseReserve, capped at MaxContext.
func ContextSize(promptTokens int) int {
	need := promptTokens + DefaultResponseReserve
	size := MinContext
	for size < need && size < MaxContext {
		size *= 2
	}
	return size
}

// Report is the size check of one prompt.
type Report struct {
	PromptTokens int
	Context      int
	// Warning is non-empty when the prompt is close to or over the window.
	Warning string
}

// Check estimates prompt, picks its context window and warns when the prompt
// plus reserve reaches DefaultWarnThreshold of that window.
func Check(prompt string) Report {
	n := Estimate(prompt)
	ctx := ContextSize(n)
	return Report{
		PromptTokens: n,
		Context:      ctx,
		Warning:      WarnIfOver(n, DefaultResponseReserve, ctx, DefaultWarnThreshold),
	}
}

// WarnIfOver returns a non-empty warning string when the total estimated
// tokens (promptTokens + responseReserve) meet or exceed warnThreshold of
// contextLimit. If contextLimit <= 0, returns "".
func WarnIfOver(promptTokens, responseReserve, contextLimit int, warnThreshold float64) string {
	if contextLimit <= 0 {
		return ""
	}
	if promptTokens < 0 || responseReserve < 0 {
		return ""
	}
	if responseReserve > math.MaxInt-promptTokens {
		return fmt.Sprintf("token estimate overflow (prompt %d + reserve %d)", promptTokens, responseReserve)
	}
	total := promptTokens + responseReserve
	limit := float64(contextLimit) * warnThreshold
	threshold := int(limit)
	if limit > float64(threshold) {
		threshold++
	}
	if total < threshold {
		return ""
	}
	return fmt.Sprintf("token estimate %d (prompt %d + reserve %d) exceeds %.0f%% of the %d-token context; the model may not see the whole diff",
		total, promptTokens, responseReserve, warnThreshold*100, contextLimit)
}

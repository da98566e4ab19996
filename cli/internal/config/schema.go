package config

import (
	"fmt"
	"strconv"
	"strings"
)

// valueKind is the expected shape of a settable key.
type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindDuration
	kindList
)

// keySpec describes one settable configuration key.
type keySpec struct {
	Key  string
	Kind valueKind
	Help string
}

// keySchema is the fixed set of keys accepted by SetKey, in display order.
var keySchema = []keySpec{
	{"model", kindString, "chat model used to generate messages"},
	{"embeddings_model", kindString, "model used for change embeddings"},
	{"host", kindString, "Ollama server URL"},
	{"timeouts.connect", kindDuration, "connection timeout (ms or duration)"},
	{"timeouts.generate", kindDuration, "generation timeout (ms or duration)"},
	{"timeouts.model_pull", kindDuration, "model pull timeout (ms or duration)"},
	{"verbose", kindBool, "show progress details"},
	{"debug", kindBool, "show prompts, raw responses and error details"},
	{"interactive", kindBool, "ask before committing"},
	{"quiet", kindBool, "only print the result"},
	{"auto_stage", kindBool, "stage all changes when nothing is staged"},
	{"auto_model", kindBool, "pick an installed model when the configured one is missing"},
	{"auto_commit", kindBool, "commit and push on accept"},
	{"use_emojis", kindBool, "ask for emoji in messages"},
	{"prompt_file", kindString, "file with a custom system prompt"},
	{"prompt_template", kindString, "named prompt template"},
	{"context", kindList, "context providers (comma separated)"},
}

const (
	maxSuggestions  = 5
	minOverlapRatio = 0.6
	maxLengthDelta  = 2
)

// Keys returns the settable keys in display order.
func Keys() []string {
	out := make([]string, len(keySchema))
	for i, k := range keySchema {
		out[i] = k.Key
	}
	return out
}

// KeyHelp returns the one-line description of key.
func KeyHelp(key string) string {
	if s, ok := lookupSpec(key); ok {
		return s.Help
	}
	return ""
}

func lookupSpec(key string) (keySpec, bool) {
	for _, k := range keySchema {
		if k.Key == key {
			return k, true
		}
	}
	return keySpec{}, false
}

// KeyError reports an unknown key with close matches.
type KeyError struct {
	Key         string
	Suggestions []string
}

func (e *KeyError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown configuration key %q", e.Key)
	}
	return fmt.Sprintf("unknown configuration key %q (did you mean: %s?)", e.Key, strings.Join(e.Suggestions, ", "))
}

// ValidateKey returns a *KeyError when key is not in the schema.
func ValidateKey(key string) error {
	if _, ok := lookupSpec(key); ok {
		return nil
	}
	return &KeyError{Key: key, Suggestions: Suggest(key)}
}

// Suggest returns up to five schema keys close to key: first keys related by
// substring containment in either direction, then keys of similar length
// (within two characters) sharing at least 60% of their characters.
func Suggest(key string) []string {
	in := strings.ToLower(strings.TrimSpace(key))
	if in == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] && len(out) < maxSuggestions {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, s := range keySchema {
		if strings.Contains(s.Key, in) || strings.Contains(in, s.Key) {
			add(s.Key)
		}
	}
	for _, s := range keySchema {
		if abs(len(s.Key)-len(in)) > maxLengthDelta {
			continue
		}
		if overlapRatio(in, s.Key) >= minOverlapRatio {
			add(s.Key)
		}
	}
	return out
}

// overlapRatio is the size of the character multiset intersection of a and b
// divided by the longer length.
func overlapRatio(a, b string) float64 {
	longer := max(len(a), len(b))
	if longer == 0 {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range b {
		counts[r]++
	}
	common := 0
	for _, r := range a {
		if counts[r] > 0 {
			counts[r]--
			common++
		}
	}
	return float64(common) / float64(longer)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Coerce converts raw text into a typed value: "true"/"false" (any case) to
// bool, a losslessly parseable number to int64 or float64, a comma-separated
// string without quote characters to a list of trimmed non-empty strings, and
// anything else to the literal string.
func Coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && strconv.FormatInt(n, 10) == raw {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == raw {
		return f
	}
	if strings.Contains(raw, ",") && !strings.ContainsAny(raw, `"'`) {
		var list []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list
	}
	return raw
}

// valueFor coerces raw and fits it to the key's kind.
func valueFor(spec keySpec, raw string) (any, error) {
	v := Coerce(raw)
	switch spec.Kind {
	case kindString:
		return strings.TrimSpace(raw), nil
	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s expects true or false, got %q", spec.Key, raw)
		}
		return b, nil
	case kindDuration:
		switch n := v.(type) {
		case int64:
			if n < 0 {
				return nil, fmt.Errorf("%s must not be negative", spec.Key)
			}
			return n, nil
		case string:
			d, err := parseDuration(n)
			if err != nil {
				return nil, fmt.Errorf("%s expects milliseconds or a duration: %w", spec.Key, err)
			}
			return d.Milliseconds(), nil
		default:
			return nil, fmt.Errorf("%s expects milliseconds or a duration, got %q", spec.Key, raw)
		}
	case kindList:
		switch l := v.(type) {
		case []string:
			out := make([]any, len(l))
			for i, s := range l {
				out[i] = s
			}
			return out, nil
		case string:
			if strings.TrimSpace(l) == "" {
				return []any{}, nil
			}
			return []any{strings.TrimSpace(l)}, nil
		default:
			return []any{strings.TrimSpace(raw)}, nil
		}
	}
	return v, nil
}

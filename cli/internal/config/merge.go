package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"commitgen/cli/internal/erruser"
)

// Source identifies where a resolved value came from.
type Source int

// Sources in ascending precedence.
const (
	SourceDefault Source = iota
	SourceEnv
	SourceUser
	SourceProject
	SourceOverride
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceEnv:
		return "env"
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	case SourceOverride:
		return "override"
	default:
		return "source(" + strconv.Itoa(int(s)) + ")"
	}
}

// Sources maps each dotted leaf key of the merged document to the source that supplied it.
type Sources map[string]Source

// Keys returns the recorded keys in sorted order.
func (s Sources) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Layer is one configuration source decoded into a generic document.
type Layer struct {
	Source Source
	Path   string // file path, empty for non-file sources
	Values map[string]any
}

// MergeLayers deep-merges layers by Source precedence (ties keep slice order)
// and records provenance for every leaf. The input order of lower layers does
// not affect the result.
func MergeLayers(layers []Layer) (map[string]any, Sources) {
	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Source < ordered[j].Source })

	merged := make(map[string]any)
	sources := make(Sources)
	for _, l := range ordered {
		deepMerge(merged, l.Values, "", l.Source, sources)
	}
	return merged, sources
}

// deepMerge copies src into dst. Maps recurse; any other value (scalar or
// list) replaces the destination wholesale.
func deepMerge(dst, src map[string]any, prefix string, from Source, sources Sources) {
	for k, v := range src {
		key := joinKey(prefix, k)
		if sm, ok := asMap(v); ok {
			dm, ok := asMap(dst[k])
			if !ok {
				dm = make(map[string]any)
				dropUnder(sources, key)
			}
			deepMerge(dm, sm, key, from, sources)
			dst[k] = dm
			continue
		}
		dropUnder(sources, key)
		dst[k] = cloneValue(v)
		sources[key] = from
	}
}

func joinKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

// dropUnder removes provenance for key and everything nested below it.
func dropUnder(sources Sources, key string) {
	delete(sources, key)
	p := key + "."
	for k := range sources {
		if strings.HasPrefix(k, p) {
			delete(sources, k)
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// NestedValue builds the nested document for a dotted key. Empty segments are
// kept literally: "a..b" yields {a: {"": {b: v}}} and "a." yields {a: {"": v}}.
func NestedValue(dottedKey string, v any) map[string]any {
	parts := strings.Split(dottedKey, ".")
	var cur any = v
	for i := len(parts) - 1; i >= 0; i-- {
		cur = map[string]any{parts[i]: cur}
	}
	return cur.(map[string]any)
}

// lookupPath returns the value at the dotted key, if present.
func lookupPath(doc map[string]any, dottedKey string) (any, bool) {
	parts := strings.Split(dottedKey, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// decode converts the merged generic document into Config.
func decode(doc map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			contextProviderHook,
		),
	})
	if err != nil {
		return nil, erruser.Configuration("Could not prepare configuration decoder.", err)
	}
	if err := dec.Decode(doc); err != nil {
		return nil, erruser.Configuration("Invalid configuration value.", err)
	}
	return &cfg, nil
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	contextProviderType = reflect.TypeOf(ContextProvider{})
)

// durationHook reads timeouts as integer milliseconds or Go duration strings.
func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case string:
		return parseDuration(v)
	default:
		return data, nil
	}
}

// contextProviderHook lets a context entry be a bare provider name.
func contextProviderHook(from, to reflect.Type, data any) (any, error) {
	if to != contextProviderType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return map[string]any{"provider": strings.TrimSpace(s), "enabled": true}, nil
	}
	if m, ok := data.(map[string]any); ok {
		if _, has := m["enabled"]; !has {
			cp := make(map[string]any, len(m)+1)
			for k, v := range m {
				cp[k] = v
			}
			cp["enabled"] = true
			return cp, nil
		}
	}
	return data, nil
}

// parseDuration accepts a Go duration ("30s") or integer milliseconds ("30000").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}

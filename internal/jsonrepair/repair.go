// Package jsonrepair recovers structured output from model replies that
// are almost, but not quite, valid JSON.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable is returned when no repair strategy yields valid JSON.
var ErrUnparseable = errors.New("unparseable json")

var bareKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// Parse decodes raw into a JSON object. It strips markdown code fences,
// then tries a strict decode, then retries once with bare object keys
// quoted. Anything still invalid after that fails with ErrUnparseable.
func Parse(raw string) (map[string]any, error) {
	s := StripFences(strings.TrimSpace(raw))

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	if err := json.Unmarshal([]byte(QuoteBareKeys(s)), &out); err == nil {
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnparseable, snippet(s))
}

// StripFences removes a surrounding markdown code fence, with or without
// a json language label.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// QuoteBareKeys wraps unquoted object keys in double quotes. Only keys
// directly after '{' or ',' are touched so that colons inside string
// values survive.
func QuoteBareKeys(s string) string {
	return bareKey.ReplaceAllString(s, `$1"$2":`)
}

// String returns the value under key if it is a string, otherwise the
// fallback.
func String(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return fallback
}

// StringList returns the value under key as a list of strings. A plain
// string value with commas is split; anything else yields nil.
func StringList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

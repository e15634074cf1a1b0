package graphql

import (
	"fmt"
	"strings"
)

// Validate performs a shallow syntax check on a GraphQL document: it
// must start with an operation keyword or a selection set, and braces,
// parentheses and brackets must balance outside of string literals.
// It does not validate against a schema.
func Validate(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return fmt.Errorf("empty query")
	}

	head := q
	if i := strings.IndexAny(q, " \t\r\n({"); i > 0 {
		head = q[:i]
	}
	switch {
	case strings.HasPrefix(q, "{"):
	case head == "query", head == "mutation", head == "subscription":
	default:
		return fmt.Errorf("unexpected start %q, want query, mutation or a selection set", head)
	}

	if !strings.Contains(q, "{") {
		return fmt.Errorf("missing selection set")
	}

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(q); i++ {
		ch := q[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '(', '[':
			stack = append(stack, ch)
		case '}', ')', ']':
			if len(stack) == 0 {
				return fmt.Errorf("unbalanced %q at offset %d", string(ch), i)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (ch == '}' && open != '{') || (ch == ')' && open != '(') || (ch == ']' && open != '[') {
				return fmt.Errorf("mismatched %q at offset %d", string(ch), i)
			}
		}
	}
	if inString {
		return fmt.Errorf("unterminated string literal")
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", string(stack[len(stack)-1]))
	}
	return nil
}

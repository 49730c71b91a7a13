package criteria

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenAtom tokenKind = iota
	tokenString
	tokenOpen
	tokenClose
)

type token struct {
	kind  tokenKind
	value string
	pos   int
}

func (t token) String() string {
	switch t.kind {
	case tokenOpen:
		return "("
	case tokenClose:
		return ")"
	case tokenString:
		return quote(t.value)
	default:
		return t.value
	}
}

// tokenize splits a SEARCH expression into atoms, quoted strings and
// parentheses. Literals ({n}) are not accepted.
func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenOpen, pos: i})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenClose, pos: i})
			i++
		case ch == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(input) {
				c := input[i]
				if c == '\\' {
					if i+1 >= len(input) {
						break
					}
					b.WriteByte(input[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted string at offset %d", start)
			}
			tokens = append(tokens, token{kind: tokenString, value: b.String(), pos: start})
		case ch == '{':
			return nil, fmt.Errorf("literals are not supported (offset %d)", i)
		default:
			start := i
			for i < len(input) && !isAtomDelim(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenAtom, value: input[start:i], pos: start})
		}
	}
	return tokens, nil
}

func isAtomDelim(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '(', ')', '"', '{':
		return true
	}
	return false
}

func quote(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t()\"\\{%*") {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return `"` + value + `"`
}

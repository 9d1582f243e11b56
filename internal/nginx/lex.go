package nginx

import (
	"strings"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenComment
	tokenSemi
	tokenOpenBrace
	tokenCloseBrace
)

type token struct {
	kind tokenKind
	text string
	line int
}

// lex splits configuration text into tokens. Words keep their quotes;
// comments keep their text with at most one leading space stripped.
// Delimiters `;`, `{` and `}` split words, a `#` only opens a comment at
// the start of a token, and quoted strings may contain any of them.
func lex(src []byte, path string) ([]token, error) {
	var toks []token
	line := 1
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			i++
			start := i
			for i < n && src[i] != '\n' {
				i++
			}
			text := strings.TrimPrefix(string(src[start:i]), " ")
			toks = append(toks, token{tokenComment, text, line})
		case c == ';':
			toks = append(toks, token{tokenSemi, ";", line})
			i++
		case c == '{':
			toks = append(toks, token{tokenOpenBrace, "{", line})
			i++
		case c == '}':
			toks = append(toks, token{tokenCloseBrace, "}", line})
			i++
		case c == '\'' || c == '"':
			word, next, endLine, err := lexQuoted(src, i, line, path)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokenWord, word, line})
			i = next
			line = endLine
		default:
			start := i
			startLine := line
			for i < n && !isWordBoundary(src[i]) {
				i++
			}
			toks = append(toks, token{tokenWord, string(src[start:i]), startLine})
		}
	}
	return toks, nil
}

func lexQuoted(src []byte, start, line int, path string) (string, int, int, error) {
	quote := src[start]
	startLine := line
	var sb strings.Builder
	sb.WriteByte(quote)
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			sb.WriteByte(c)
			sb.WriteByte(src[i+1])
			if src[i+1] == '\n' {
				line++
			}
			i += 2
			continue
		}
		if c == '\n' {
			line++
		}
		sb.WriteByte(c)
		i++
		if c == quote {
			return sb.String(), i, line, nil
		}
	}
	return "", 0, 0, nxerrors.Parse(path, startLine, "unterminated quoted string")
}

func isWordBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ';', '{', '}':
		return true
	}
	return false
}

package sql

import (
	"strings"
)

// token is a word or quoted identifier found while scanning SQL text.
// start and end are byte offsets into the scanned text; for bracketed or
// double-quoted identifiers they include the delimiters.
type token struct {
	word  string // upper-cased for words, inner text for quoted identifiers
	start int
	end   int
	depth int
	ident bool // quoted identifier, never a keyword
}

// scanTokens walks SQL text and returns its words with their parenthesis
// depth. String literals and comments are skipped.
func scanTokens(text string) []token {
	var tokens []token
	depth := 0
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\'':
			i = skipQuoted(text, i, '\'')
		case c == '"':
			end := skipQuoted(text, i, '"')
			tokens = append(tokens, token{word: trimDelims(text[i:end]), start: i, end: end, depth: depth, ident: true})
			i = end
		case c == '[':
			end := skipQuoted(text, i, ']')
			tokens = append(tokens, token{word: trimDelims(text[i:end]), start: i, end: end, depth: depth, ident: true})
			i = end
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return tokens
			}
			i += nl + 1
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return tokens
			}
			i += end + 4
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isWordByte(c):
			start := i
			for i < len(text) && isWordByte(text[i]) {
				i++
			}
			tokens = append(tokens, token{word: strings.ToUpper(text[start:i]), start: start, end: i, depth: depth})
		default:
			i++
		}
	}
	return tokens
}

// skipQuoted returns the offset just past the closing delimiter of a quoted
// run starting at text[start]. A doubled closing delimiter is an escape.
func skipQuoted(text string, start int, closing byte) int {
	i := start + 1
	for i < len(text) {
		if text[i] == closing {
			if i+1 < len(text) && text[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(text)
}

// hasStatementSeparator reports whether text has a semicolon outside string
// literals, quoted identifiers and comments.
func hasStatementSeparator(text string) bool {
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\'':
			i = skipQuoted(text, i, '\'')
		case c == '"':
			i = skipQuoted(text, i, '"')
		case c == '[':
			i = skipQuoted(text, i, ']')
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return false
			}
			i += nl + 1
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 4
		case c == ';':
			return true
		default:
			i++
		}
	}
	return false
}

// hasKeyword reports whether tokens contain the unquoted word kw at any depth.
func hasKeyword(tokens []token, kw string) bool {
	for _, t := range tokens {
		if t.isKeyword(kw) {
			return true
		}
	}
	return false
}

func trimDelims(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func isWordByte(c byte) bool {
	return c == '_' || c == '@' || c == '#' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// isKeyword reports whether tok is an unquoted word equal to kw.
func (t token) isKeyword(kw string) bool {
	return !t.ident && t.word == kw
}

// topLevel returns the tokens at parenthesis depth zero.
func topLevel(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	for _, t := range tokens {
		if t.depth == 0 {
			out = append(out, t)
		}
	}
	return out
}

// clauseEnd returns the index in tokens of the first top-level keyword that
// ends a WHERE or FROM clause, or -1.
func clauseEnd(tokens []token, from int) int {
	for i := from; i < len(tokens); i++ {
		t := tokens[i]
		if t.ident {
			continue
		}
		switch t.word {
		case "GROUP", "ORDER":
			if i+1 < len(tokens) && tokens[i+1].isKeyword("BY") {
				return i
			}
		case "HAVING", "OPTION", "FOR", "UNION", "EXCEPT", "INTERSECT":
			return i
		}
	}
	return -1
}

// isCompound reports whether the statement combines queries with a set
// operator at the top level.
func isCompound(tokens []token) bool {
	for _, t := range tokens {
		if t.isKeyword("UNION") || t.isKeyword("EXCEPT") || t.isKeyword("INTERSECT") {
			return true
		}
	}
	return false
}

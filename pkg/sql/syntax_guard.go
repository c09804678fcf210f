package sql

import (
	"regexp"
)

var (
	// Two clause fragments glued together with a semicolon, e.g.
	// "... ORDER BY x; GROUP BY y" or "SELECT a FROM t; select b".
	splitClausePattern = regexp.MustCompile(
		`(?i)\b(?:SELECT|FROM|WHERE|ORDER\s+BY|GROUP\s+BY|HAVING)\b[^;]*;\s*(?:SELECT|FROM|WHERE|ORDER\s+BY|GROUP\s+BY|HAVING)\b`)

	semicolonBeforeClausePattern = regexp.MustCompile(`(?i);\s*(?:WHERE|ORDER|GROUP|HAVING)\b`)
)

// GuardSyntax rejects malformed shapes that language models produce when
// they concatenate statement fragments. It returns ErrMalformedClause,
// ErrStatementSeparator or nil. Normalize strips trailing semicolons, so any
// semicolon left outside literals and comments separates two statements.
func GuardSyntax(text string) error {
	if semicolonBeforeClausePattern.MatchString(text) || splitClausePattern.MatchString(text) {
		return ErrMalformedClause
	}
	if hasStatementSeparator(text) {
		return ErrStatementSeparator
	}
	return nil
}

// CheckSyntax reports whether text passes the syntax guard.
func CheckSyntax(text string) bool {
	return GuardSyntax(text) == nil
}

// Package sql provides the text-level checks and rewrites applied to
// model-generated SQL before it is executed.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotReadOnly indicates the statement does not start with SELECT or WITH.
	ErrNotReadOnly = errors.New("only SELECT or WITH statements are allowed")
	// ErrForbiddenKeyword indicates a mutating or schema-altering keyword.
	ErrForbiddenKeyword = errors.New("statement contains a forbidden keyword")
	// ErrStatementChaining indicates a semicolon that looks like a second statement.
	ErrStatementChaining = errors.New("statement chaining is not allowed")
	// ErrMalformedClause indicates clause fragments joined by a semicolon.
	ErrMalformedClause = errors.New("malformed clause sequence")
	// ErrStatementSeparator indicates a semicolon left inside the statement.
	ErrStatementSeparator = errors.New("statement separator inside query")
	// ErrSelectInto indicates SELECT ... INTO, which creates a table.
	ErrSelectInto = errors.New("SELECT INTO is not allowed")
	// ErrSoftDeleteNotApplied indicates the soft-delete predicate could not be placed.
	ErrSoftDeleteNotApplied = errors.New("soft-delete filter could not be applied")
)

// ForbiddenKeywords are rejected anywhere in a statement as whole words.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"EXEC", "EXECUTE", "TRUNCATE", "BACKUP", "RESTORE",
	"GRANT", "REVOKE", "DENY", "MERGE",
}

var (
	readOnlyPrefixPattern = regexp.MustCompile(`(?i)^(?:SELECT|WITH)\b`)
	forbiddenPattern      = regexp.MustCompile(`(?i)\b(?:` + strings.Join(ForbiddenKeywords, "|") + `)\b`)

	// A semicolon followed by end of text, a comment marker or an uppercase
	// letter. Case-sensitive on purpose: "; DROP" and ";SELECT" chain,
	// while a lowercase continuation is left to the syntax guard.
	chainingPattern = regexp.MustCompile(`;\s*(?:$|--|/\*|[A-Z])`)
)

// Validate applies the read-only rules in order and returns the first
// violation, or nil. It never modifies the statement.
func Validate(text string) error {
	trimmed := strings.TrimSpace(text)

	if !readOnlyPrefixPattern.MatchString(trimmed) {
		return ErrNotReadOnly
	}
	if kw := forbiddenPattern.FindString(trimmed); kw != "" {
		return fmt.Errorf("%w: %s", ErrForbiddenKeyword, strings.ToUpper(kw))
	}
	if chainingPattern.MatchString(trimmed) {
		return ErrStatementChaining
	}
	if hasKeyword(scanTokens(trimmed), "INTO") {
		return ErrSelectInto
	}
	return nil
}

// IsSafe reports whether text passes every validator rule.
func IsSafe(text string) bool {
	return Validate(text) == nil
}

// RuleName returns a short label for a validation or syntax error.
func RuleName(err error) string {
	switch {
	case errors.Is(err, ErrNotReadOnly):
		return "read_only"
	case errors.Is(err, ErrForbiddenKeyword):
		return "forbidden_keyword"
	case errors.Is(err, ErrStatementChaining):
		return "statement_chaining"
	case errors.Is(err, ErrMalformedClause):
		return "malformed_clause"
	case errors.Is(err, ErrStatementSeparator):
		return "statement_separator"
	case errors.Is(err, ErrSelectInto):
		return "select_into"
	case errors.Is(err, ErrSoftDeleteNotApplied):
		return "soft_delete_unplaced"
	default:
		return "unknown"
	}
}

package sql

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// SoftDeleteColumn flags rows that were deleted by users.
	SoftDeleteColumn = "IsDeleted"
	// SoftDeletePredicate is the filter every executed query must carry.
	SoftDeletePredicate = "(IsDeleted = 0 OR IsDeleted IS NULL)"
)

// Any comparison of the soft-delete column to 0 or NULL, qualified
// (t.IsDeleted), bracketed ([IsDeleted]) or bare.
var softDeleteReferencePattern = regexp.MustCompile(`(?i)\[?\bIsDeleted\b\]?\s*(?:=\s*0\b|IS\s+NULL\b)`)

// Words that can follow a table reference without being its alias.
var notAnAlias = map[string]bool{
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "OUTER": true, "APPLY": true, "ON": true, "WITH": true,
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "OPTION": true,
	"FOR": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
}

// HasSoftDeleteFilter reports whether text already compares the soft-delete
// column to 0 or NULL.
func HasSoftDeleteFilter(text string) bool {
	return softDeleteReferencePattern.MatchString(text)
}

// InjectSoftDeleteFilter guarantees the soft-delete predicate on a validated
// statement. The rewrite is textual:
//
//   - a statement that already filters on the column is returned unchanged
//   - with a top-level WHERE, the predicate goes right after WHERE and the
//     existing condition is parenthesized, so an OR cannot bind to it
//   - otherwise a WHERE is added before GROUP BY, HAVING, ORDER BY, OPTION or
//     FOR, or at the end
//
// Statements it cannot place the predicate in safely (no top-level FROM,
// set operators such as UNION) are returned unchanged. Callers can detect
// that with HasSoftDeleteFilter.
func InjectSoftDeleteFilter(text string) string {
	if HasSoftDeleteFilter(text) {
		return text
	}

	top := topLevel(scanTokens(text))
	if isCompound(top) {
		return text
	}

	fromIdx := indexOfKeyword(top, "FROM", 0)
	if fromIdx < 0 {
		return text
	}
	predicate := predicateFor(text, top, fromIdx)

	if whereIdx := indexOfKeyword(top, "WHERE", fromIdx+1); whereIdx >= 0 {
		where := top[whereIdx]
		condEnd := len(text)
		if endIdx := clauseEnd(top, whereIdx+1); endIdx >= 0 {
			condEnd = top[endIdx].start
		}
		condition := strings.TrimSpace(text[where.end:condEnd])
		if condition == "" {
			return text
		}
		out := text[:where.end] + " " + predicate + " AND (" + condition + ")"
		if rest := strings.TrimSpace(text[condEnd:]); rest != "" {
			out += " " + rest
		}
		return out
	}

	endIdx := clauseEnd(top, fromIdx+1)
	if endIdx < 0 {
		return strings.TrimRight(text, " ") + " WHERE " + predicate
	}
	pos := top[endIdx].start
	return strings.TrimRight(text[:pos], " ") + " WHERE " + predicate + " " + text[pos:]
}

// predicateFor qualifies the predicate with the first table's alias when the
// FROM clause joins other tables.
func predicateFor(text string, top []token, fromIdx int) string {
	if indexOfKeyword(top, "JOIN", fromIdx+1) < 0 || fromIdx+1 >= len(top) {
		return SoftDeletePredicate
	}

	i := fromIdx + 1
	if top[i].isKeyword("AS") && i+1 < len(top) {
		// derived table: FROM (SELECT ...) AS d
		return qualifiedPredicate(tokenText(text, top[i+1]))
	}

	// schema-qualified names: dbo.tenderTender, [dbo].[tenderTender]
	for i+1 < len(top) && top[i].end < len(text) && text[top[i].end] == '.' && top[i+1].start == top[i].end+1 {
		i++
	}
	qualifier := tokenText(text, top[i])

	if i+1 < len(top) {
		next := top[i+1]
		switch {
		case next.isKeyword("AS") && i+2 < len(top):
			qualifier = tokenText(text, top[i+2])
		case next.ident || !notAnAlias[next.word]:
			qualifier = tokenText(text, next)
		}
	}
	return qualifiedPredicate(qualifier)
}

func qualifiedPredicate(qualifier string) string {
	return fmt.Sprintf("(%[1]s.%[2]s = 0 OR %[1]s.%[2]s IS NULL)", qualifier, SoftDeleteColumn)
}

func tokenText(text string, t token) string {
	return text[t.start:t.end]
}

func indexOfKeyword(tokens []token, kw string, from int) int {
	for i := from; i < len(tokens); i++ {
		if tokens[i].isKeyword(kw) {
			return i
		}
	}
	return -1
}

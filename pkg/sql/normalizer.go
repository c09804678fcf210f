package sql

import (
	"regexp"
	"strings"
)

var (
	// A fence optionally followed by a language tag on the same line
	// (```sql, ```tsql, ```SQL). A tag only counts when a newline follows it,
	// so "```SELECT 1```" keeps its SELECT.
	codeFencePattern = regexp.MustCompile("```(?:[A-Za-z0-9_+-]*[ \t]*\r?\n)?")

	whitespacePattern = regexp.MustCompile(`\s+`)

	// Explanations a model tends to put before the statement.
	leadingPhrasePattern = regexp.MustCompile(`(?i)^(?:` + strings.Join([]string{
		`sure\b[,!.]?`,
		`certainly\b[,!.]?`,
		`here(?:'s|’s| is) (?:the |your |an? )?(?:t-?sql |sql )?(?:query|statement)\b(?: you need)?\s*[:.]?`,
		`the (?:t-?sql |sql )?(?:query|statement) (?:is|would be)\s*[:.]?`,
		`(?:t-?sql|sql) (?:query|statement)\s*:`,
		`(?:t-?sql|sql)\s*:`,
		`query\s*:`,
		`answer\s*:`,
	}, "|") + `)\s*`)

	// Explanations a model tends to put after the statement. Everything from
	// the first marker to the end of the text is dropped.
	trailingSuffixPattern = regexp.MustCompile(`(?i)\s(?:` + strings.Join([]string{
		`this query\b`,
		`the above query\b`,
		`this will (?:return|show|list|give)\b`,
		`explanation\s*:`,
		`note\s*:`,
	}, "|") + `)`)
)

// Normalize strips formatting artifacts from raw model output and returns
// the candidate SQL statement on a single line, or "" when nothing remains.
// Normalize is idempotent.
func Normalize(raw string) string {
	text := codeFencePattern.ReplaceAllString(raw, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")

	if loc := trailingSuffixPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	for {
		before := text
		text = strings.Trim(text, "` ")
		if loc := leadingPhrasePattern.FindStringIndex(text); loc != nil {
			text = text[loc[1]:]
		}
		// Trailing semicolons are formatting, not statement chaining.
		text = strings.TrimRight(text, "`; ")
		if text == before {
			return text
		}
	}
}

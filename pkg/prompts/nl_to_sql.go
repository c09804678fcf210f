package prompts

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

const (
	// MaxSampleRowsInPrompt bounds the sample rows rendered per table.
	MaxSampleRowsInPrompt = 2
	// MaxHistoryTurns bounds the prior conversation turns rendered.
	MaxHistoryTurns = 5
	// MaxSampleValueLength truncates long sample values (in runes).
	MaxSampleValueLength = 50
)

// nlToSQLRules are the fixed instructions sent with every question.
var nlToSQLRules = []string{
	"Generate exactly one read-only statement that starts with SELECT or WITH.",
	"Never use INSERT, UPDATE, DELETE, DROP, CREATE, ALTER, EXEC, EXECUTE, TRUNCATE, BACKUP, RESTORE, GRANT, REVOKE, DENY or MERGE.",
	"Always exclude deleted rows with (IsDeleted = 0 OR IsDeleted IS NULL).",
	"List columns explicitly and use aliases for computed values instead of SELECT *.",
	"For largest, biggest, latest or most recent questions, bound the result with TOP.",
	"Use Microsoft SQL Server (T-SQL) syntax.",
	"Return only the SQL statement, with no explanation and no markdown.",
}

// BuildNLToSQLSystemMessage returns the system message for SQL generation.
func BuildNLToSQLSystemMessage() string {
	return "You translate business questions into Microsoft SQL Server queries. You only ever write read-only SELECT statements."
}

// BuildNLToSQLPrompt creates the prompt that asks the model for a SQL Server
// query answering question. Tables whose introspection failed are left out.
// history is ordered oldest first and only the last MaxHistoryTurns turns
// are used; prior result rows are never included.
//
// The output is byte-identical for identical input.
func BuildNLToSQLPrompt(question string, snapshot *models.SchemaSnapshot, history []models.ConversationTurn) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	for _, table := range snapshot.UsableTables() {
		prompt.WriteString(fmt.Sprintf("%s(%s)\n", table.QualifiedName(), strings.Join(table.ColumnNames(), ", ")))
		for i, row := range table.SampleRows {
			if i >= MaxSampleRowsInPrompt {
				break
			}
			prompt.WriteString("  sample: ")
			prompt.WriteString(formatSampleRow(table.Columns, row))
			prompt.WriteString("\n")
		}
	}
	prompt.WriteString("\n")

	if len(history) > 0 {
		start := 0
		if len(history) > MaxHistoryTurns {
			start = len(history) - MaxHistoryTurns
		}
		prompt.WriteString("# Previous Questions\n\n")
		for _, turn := range history[start:] {
			prompt.WriteString(fmt.Sprintf("- %s", EscapeQuestion(turn.Question)))
			if turn.ResultCount != nil {
				prompt.WriteString(fmt.Sprintf(" (%d rows)", *turn.ResultCount))
			}
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("# Rules\n\n")
	for _, rule := range nlToSQLRules {
		prompt.WriteString("- ")
		prompt.WriteString(rule)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\nSQL:")

	return prompt.String()
}

// formatSampleRow renders a sample row as "col: value" pairs in column order.
func formatSampleRow(columns []models.ColumnDescriptor, row map[string]any) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", col.Name, formatSampleValue(v)))
	}
	return strings.Join(parts, ", ")
}

func formatSampleValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format("2006-01-02 15:04:05")
	default:
		s = fmt.Sprint(val)
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > MaxSampleValueLength {
		s = string(r[:MaxSampleValueLength]) + "..."
	}
	return s
}

// EscapeQuestion prepares a user question for embedding in a prompt:
// control characters are dropped, whitespace runs become a single space and
// single quotes are doubled.
func EscapeQuestion(question string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, question)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.ReplaceAll(cleaned, "'", "''")
}

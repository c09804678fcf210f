package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardSyntax_RejectsSplitClauses(t *testing.T) {
	inputs := []string{
		"SELECT Name FROM tenderEmployee; WHERE Status=1",
		"SELECT Name FROM tenderEmployee; where Status=1",
		"SELECT Id FROM tenderTender ORDER BY Value; GROUP BY Status",
		"SELECT Id FROM tenderTender ;order by Value",
		"select a from tenderTender; select b from tenderEmployee",
		"SELECT Status FROM tenderTender GROUP BY Status; HAVING COUNT(*) > 1",
	}

	for _, in := range inputs {
		assert.ErrorIs(t, GuardSyntax(in), ErrMalformedClause, "input: %q", in)
		assert.False(t, CheckSyntax(in), "input: %q", in)
	}
}

func TestGuardSyntax_AcceptsWellFormedStatements(t *testing.T) {
	inputs := []string{
		"SELECT TOP 1 ProjectName, Value FROM tenderTender WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ORDER BY Value DESC",
		"SELECT Name FROM tenderEmployee WHERE Note = 'a;b'",
		"WITH x AS (SELECT Id FROM tenderTender) SELECT Id FROM x",
		"SELECT Status, COUNT(*) FROM tenderTender GROUP BY Status HAVING COUNT(*) > 1",
		"SELECT [a;b] FROM tenderTender -- trailing; note",
		"SELECT Id /* x; y */ FROM tenderTender",
	}

	for _, in := range inputs {
		assert.NoError(t, GuardSyntax(in), "input: %q", in)
		assert.True(t, CheckSyntax(in), "input: %q", in)
	}
}

func TestScenario_SemicolonBeforeWhereIsRejectedByValidatorOrGuard(t *testing.T) {
	in := "SELECT Name FROM tenderEmployee; WHERE Status=1"
	assert.True(t, Validate(in) != nil || GuardSyntax(in) != nil)
}

func TestGuardSyntax_RejectsLeftoverSeparator(t *testing.T) {
	inputs := []string{
		"SELECT ProjectName FROM tenderTender WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ORDER BY Value; shutdown",
		"SELECT Id FROM tenderTender; waitfor delay '00:00:10'",
		"SELECT Id FROM tenderTender WHERE Note = 'a' ; x",
	}

	for _, in := range inputs {
		err := GuardSyntax(in)
		assert.ErrorIs(t, err, ErrStatementSeparator, "input: %q", in)
		assert.Equal(t, "statement_separator", RuleName(err))
	}
}

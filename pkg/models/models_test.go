package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCandidate_AdvanceInOrder(t *testing.T) {
	c := NewQueryCandidate("```sql\nSELECT 1\n```", "SELECT 1")
	assert.Equal(t, StageNormalized, c.Stage())
	assert.False(t, c.Executable())

	require.NoError(t, c.Advance(StageValidated, "SELECT 1"))
	require.NoError(t, c.Advance(StagePolicyApplied, "SELECT 1 WHERE x"))
	require.NoError(t, c.Advance(StageSyntaxChecked, "SELECT 1 WHERE x"))
	require.NoError(t, c.Advance(StageFinal, "SELECT 1 WHERE x"))

	assert.True(t, c.Executable())
	assert.Equal(t, "SELECT 1 WHERE x", c.Text())
	assert.Equal(t, "```sql\nSELECT 1\n```", c.RawModelOutput())
	assert.Equal(t, "SELECT 1", c.NormalizedText())
}

func TestQueryCandidate_CannotSkipStages(t *testing.T) {
	c := NewQueryCandidate("SELECT 1", "SELECT 1")

	err := c.Advance(StagePolicyApplied, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NORMALIZED -> POLICY_APPLIED")
	assert.Equal(t, StageNormalized, c.Stage())

	require.NoError(t, c.Advance(StageValidated, "SELECT 1"))
	assert.Error(t, c.Advance(StageValidated, "SELECT 1"), "repeating a stage is not allowed")
	assert.Error(t, c.Advance(StageFinal, "SELECT 1"))
}

func TestSchemaSnapshot_UsableTables(t *testing.T) {
	s := &SchemaSnapshot{Tables: []TableDescriptor{
		{Name: "tenderTender", Columns: []ColumnDescriptor{{Name: "Id"}}},
		{Name: "broken", Error: "permission denied"},
		{Name: "empty"},
	}}

	usable := s.UsableTables()
	require.Len(t, usable, 1)
	assert.Equal(t, "tenderTender", usable[0].Name)

	var nilSnapshot *SchemaSnapshot
	assert.Nil(t, nilSnapshot.UsableTables())
}

func TestTableDescriptor_QualifiedName(t *testing.T) {
	assert.Equal(t, "tenderTender", TableDescriptor{Schema: "dbo", Name: "tenderTender"}.QualifiedName())
	assert.Equal(t, "tenderTender", TableDescriptor{Name: "tenderTender"}.QualifiedName())
	assert.Equal(t, "sales.Orders", TableDescriptor{Schema: "sales", Name: "Orders"}.QualifiedName())
}

func TestSchemaSnapshot_Table(t *testing.T) {
	s := &SchemaSnapshot{Tables: []TableDescriptor{{Schema: "sales", Name: "Orders"}}}

	_, ok := s.Table("orders")
	assert.True(t, ok)
	_, ok = s.Table("SALES.ORDERS")
	assert.True(t, ok)
	_, ok = s.Table("customers")
	assert.False(t, ok)
}

func TestAskResponse_JSONShapes(t *testing.T) {
	success, err := json.Marshal(AskResponse{Question: "q", Query: "SELECT 1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","query":"SELECT 1","result":[],"fallbackUsed":false}`, string(success))

	failure, err := json.Marshal(AskResponse{Question: "q", Error: "please rephrase", Query: "ignored"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"please rephrase","question":"q"}`, string(failure))
}

func TestExecutionRecord_SetError(t *testing.T) {
	rec := NewExecutionRecord("What's up?", "What''s up?")
	assert.NotEmpty(t, rec.ID)
	assert.Nil(t, rec.Error)

	rec.SetError("executing", "Invalid column name")
	require.NotNil(t, rec.Error)
	assert.Equal(t, "Invalid column name", *rec.Error)
	assert.Equal(t, "executing", rec.FailureStage)
}

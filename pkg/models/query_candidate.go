package models

import (
	"fmt"
)

// CandidateStage is the validation stage a QueryCandidate has reached.
type CandidateStage int

const (
	StageNormalized CandidateStage = iota + 1
	StageValidated
	StagePolicyApplied
	StageSyntaxChecked
	StageFinal
)

func (s CandidateStage) String() string {
	switch s {
	case StageNormalized:
		return "NORMALIZED"
	case StageValidated:
		return "VALIDATED"
	case StagePolicyApplied:
		return "POLICY_APPLIED"
	case StageSyntaxChecked:
		return "SYNTAX_CHECKED"
	case StageFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

// QueryCandidate tracks one translation attempt through the pipeline stages.
// RawModelOutput is fixed at construction and kept for audit.
type QueryCandidate struct {
	rawModelOutput string
	normalizedText string
	text           string
	stage          CandidateStage
}

// NewQueryCandidate starts a candidate from the model's raw output and its
// normalized form.
func NewQueryCandidate(raw, normalized string) *QueryCandidate {
	return &QueryCandidate{
		rawModelOutput: raw,
		normalizedText: normalized,
		text:           normalized,
		stage:          StageNormalized,
	}
}

// Advance moves the candidate to the next stage, replacing its current text.
// Stages cannot be skipped or repeated.
func (c *QueryCandidate) Advance(next CandidateStage, text string) error {
	if next != c.stage+1 {
		return fmt.Errorf("invalid stage transition %s -> %s", c.stage, next)
	}
	c.stage = next
	c.text = text
	return nil
}

func (c *QueryCandidate) RawModelOutput() string { return c.rawModelOutput }
func (c *QueryCandidate) NormalizedText() string { return c.normalizedText }
func (c *QueryCandidate) Text() string           { return c.text }
func (c *QueryCandidate) Stage() CandidateStage  { return c.stage }

// Executable reports whether the candidate has passed every stage.
func (c *QueryCandidate) Executable() bool {
	return c.stage == StageFinal
}

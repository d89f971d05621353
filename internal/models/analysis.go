package models

import (
	"encoding/json"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeScored  OutcomeKind = "scored"
	OutcomeRawText OutcomeKind = "raw_text"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is what one resume produced: a structured score, raw model text
// when the structured response could not be parsed (or was not requested),
// or a failure description.
type Outcome struct {
	Kind   OutcomeKind
	Result map[string]any
	Text   string
}

func Scored(result map[string]any) Outcome {
	return Outcome{Kind: OutcomeScored, Result: result}
}

func RawText(text string) Outcome {
	return Outcome{Kind: OutcomeRawText, Text: text}
}

// Failed records reason verbatim; callers prefix it ("Error: ...").
func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Text: reason}
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeScored || o.Kind == OutcomeRawText
}

// Value is the payload callers see: the object for scored outcomes and the
// plain string otherwise.
func (o Outcome) Value() any {
	if o.Kind == OutcomeScored {
		return o.Result
	}
	return o.Text
}

// Fit levels and recommendations produced by the ATS schema.
const (
	RecommendationApproved = "APPROVED"
	RecommendationRejected = "REJECTED"

	FitHigh   = "HIGH_FIT"
	FitMedium = "MEDIUM_FIT"
	FitLow    = "LOW_FIT"
	FitNone   = "NO_FIT"
)

// AnalysisResult is the typed view over a stored structured result. Pointer
// fields stay nil when the evaluator omitted them.
type AnalysisResult struct {
	CandidateName         *string        `json:"candidate_name"`
	PositionApplied       *string        `json:"position_applied"`
	Company               *string        `json:"company"`
	OverallFitScore       *float64       `json:"overall_fit_score"`
	Recommendation        *string        `json:"recommendation"`
	FitLevel              *string        `json:"fit_level"`
	KeyStrengths          []string       `json:"key_strengths"`
	MajorConcerns         []string       `json:"major_concerns"`
	SkillsAssessment      map[string]any `json:"skills_assessment"`
	ExperienceFit         map[string]any `json:"experience_fit"`
	HiringDecisionFactors map[string]any `json:"hiring_decision_factors"`
	EvaluationTimestamp   *string        `json:"evaluation_timestamp"`
	TextResult            *string        `json:"text_result,omitempty"`
}

// DecodeAnalysisResult parses a stored result_json document.
func DecodeAnalysisResult(raw string) (*AnalysisResult, error) {
	var res AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("failed to parse analysis data: %w", err)
	}
	return &res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *AnalysisResult) Candidate() string { return deref(r.CandidateName) }
func (r *AnalysisResult) Position() string  { return deref(r.PositionApplied) }
func (r *AnalysisResult) Employer() string  { return deref(r.Company) }
func (r *AnalysisResult) Verdict() string   { return deref(r.Recommendation) }
func (r *AnalysisResult) Fit() string       { return deref(r.FitLevel) }

func (r *AnalysisResult) Score() float64 {
	if r.OverallFitScore == nil {
		return 0
	}
	return *r.OverallFitScore
}

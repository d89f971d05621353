package models

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

type UploadRequest struct {
	UserUUID   string `form:"user_uuid" validate:"required,max=128"`
	MaxWorkers string `form:"max_workers" validate:"omitempty,number"`
	Structured string `form:"structured" validate:"omitempty,oneof=true false 1 0"`
}

// WantsStructured reports whether structured output was requested; it is the default.
func (r UploadRequest) WantsStructured() bool {
	return r.Structured != "false" && r.Structured != "0"
}

// Workers is the requested pool size, capped at limit. Zero means the server default.
func (r UploadRequest) Workers(limit int) int {
	n, err := strconv.Atoi(r.MaxWorkers)
	if err != nil || n < 1 {
		return 0
	}
	return min(n, limit)
}

type AnalysisEntry struct {
	ResumeFile string      `json:"resume_file"`
	Status     OutcomeKind `json:"status"`
	Analysis   any         `json:"analysis"`
}

func NewAnalysisEntry(resumePath string, outcome Outcome) AnalysisEntry {
	return AnalysisEntry{
		ResumeFile: filepath.Base(resumePath),
		Status:     outcome.Kind,
		Analysis:   outcome.Value(),
	}
}

type AnalysisResponse struct {
	AnalysisResults []AnalysisEntry `json:"analysis_results"`
}

// AnalysisView is the redacted form of a stored analysis served to clients.
// Field values are passed through as stored, whatever their JSON type.
type AnalysisView struct {
	AnalysisID            int    `json:"analysis_id"`
	ProcessedAt           string `json:"processed_at"`
	CandidateName         any    `json:"candidate_name"`
	PositionApplied       any    `json:"position_applied"`
	Company               any    `json:"company"`
	OverallFitScore       any    `json:"overall_fit_score"`
	Recommendation        any    `json:"recommendation"`
	FitLevel              any    `json:"fit_level"`
	KeyStrengths          any    `json:"key_strengths"`
	MajorConcerns         any    `json:"major_concerns"`
	SkillsAssessment      any    `json:"skills_assessment"`
	ExperienceFit         any    `json:"experience_fit"`
	HiringDecisionFactors any    `json:"hiring_decision_factors"`
	EvaluationTimestamp   any    `json:"evaluation_timestamp"`
}

type AnalysisViewError struct {
	AnalysisID  int    `json:"analysis_id"`
	ProcessedAt string `json:"processed_at"`
	Error       string `json:"error"`
}

const ParseFailureMessage = "Failed to parse analysis data"

// NewAnalysisView redacts a stored record. Only a result_json that is not a
// JSON object degrades to an AnalysisViewError; odd field types are kept.
func NewAnalysisView(rec AnalysisRecord) any {
	fields, err := decodeResultObject(rec.ResultJSON)
	if err != nil {
		return AnalysisViewError{
			AnalysisID:  rec.ID,
			ProcessedAt: rec.ProcessedAt,
			Error:       ParseFailureMessage,
		}
	}

	return AnalysisView{
		AnalysisID:            rec.ID,
		ProcessedAt:           rec.ProcessedAt,
		CandidateName:         fields["candidate_name"],
		PositionApplied:       fields["position_applied"],
		Company:               fields["company"],
		OverallFitScore:       fields["overall_fit_score"],
		Recommendation:        fields["recommendation"],
		FitLevel:              fields["fit_level"],
		KeyStrengths:          orDefault(fields["key_strengths"], []any{}),
		MajorConcerns:         orDefault(fields["major_concerns"], []any{}),
		SkillsAssessment:      orDefault(fields["skills_assessment"], map[string]any{}),
		ExperienceFit:         orDefault(fields["experience_fit"], map[string]any{}),
		HiringDecisionFactors: orDefault(fields["hiring_decision_factors"], map[string]any{}),
		EvaluationTimestamp:   fields["evaluation_timestamp"],
	}
}

// decodeResultObject decodes result_json without imposing field types.
// Numbers keep their stored text.
func decodeResultObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to parse analysis data: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("failed to parse analysis data: not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to parse analysis data: trailing data")
	}
	return fields, nil
}

func orDefault(v, def any) any {
	if v == nil {
		return def
	}
	return v
}

type ResultsResponse struct {
	UserUUID     string `json:"user_uuid"`
	TotalResults int    `json:"total_results"`
	Analyses     []any  `json:"analyses"`
}

type SearchHit struct {
	AnalysisID     int     `json:"analysis_id"`
	ResumeFile     string  `json:"resume_file"`
	CandidateName  string  `json:"candidate_name"`
	Recommendation string  `json:"recommendation"`
	FitScore       float64 `json:"overall_fit_score"`
	Similarity     float32 `json:"similarity"`
}

package services

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

//go:embed ats_schema.json
var atsSchemaJSON []byte

var (
	atsSchemaOnce sync.Once
	atsSchema     *gojsonschema.Schema
	atsSchemaErr  error
)

func percent() *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Minimum: genai.Ptr(0.0), Maximum: genai.Ptr(100.0)}
}

func stringList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

func oneOf(values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values}
}

// ATSResponseSchema is the structured output the evaluator is asked to produce.
func ATSResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"candidate_name":    {Type: genai.TypeString},
			"position_applied":  {Type: genai.TypeString},
			"company":           {Type: genai.TypeString},
			"overall_fit_score": {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0), Maximum: genai.Ptr(100.0)},
			"recommendation":    oneOf("APPROVED", "REJECTED"),
			"fit_level":         oneOf("HIGH_FIT", "MEDIUM_FIT", "LOW_FIT", "NO_FIT"),
			"key_strengths":     stringList(),
			"major_concerns":    stringList(),
			"skills_assessment": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"required_skills_match":   percent(),
					"preferred_skills_match":  percent(),
					"critical_skills_missing": stringList(),
					"skill_gaps_impact":       oneOf("Low", "Medium", "High", "Critical"),
				},
				Required: []string{"required_skills_match", "preferred_skills_match", "critical_skills_missing", "skill_gaps_impact"},
			},
			"experience_fit": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"years_required":       {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0)},
					"years_candidate_has":  {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0)},
					"experience_relevance": oneOf("High", "Medium", "Low", "None"),
					"project_quality":      oneOf("Excellent", "Good", "Average", "Poor"),
				},
				Required: []string{"years_required", "years_candidate_has", "experience_relevance", "project_quality"},
			},
			"hiring_decision_factors": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"technical_competency":    percent(),
					"experience_level":        percent(),
					"cultural_fit_indicators": percent(),
					"growth_potential":        percent(),
					"immediate_productivity":  percent(),
				},
				Required: []string{"technical_competency", "experience_level", "cultural_fit_indicators", "growth_potential", "immediate_productivity"},
			},
		},
		Required: []string{
			"candidate_name", "position_applied", "company", "overall_fit_score",
			"recommendation", "fit_level", "key_strengths",
			"major_concerns", "skills_assessment", "experience_fit", "hiring_decision_factors",
		},
	}
}

// ValidateAssessment checks a structured result against the ATS JSON Schema
// and returns the violations, if any.
func ValidateAssessment(resultJSON string) ([]string, error) {
	atsSchemaOnce.Do(func() {
		atsSchema, atsSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(atsSchemaJSON))
	})
	if atsSchemaErr != nil {
		return nil, fmt.Errorf("failed to load ats schema: %w", atsSchemaErr)
	}

	result, err := atsSchema.Validate(gojsonschema.NewStringLoader(resultJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to validate assessment: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		violations = append(violations, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return violations, nil
}

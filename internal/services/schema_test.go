package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestValidateAssessmentAcceptsCompleteResult(t *testing.T) {
	violations, err := ValidateAssessment(sampleAssessment)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidateAssessmentReportsViolations(t *testing.T) {
	broken := strings.Replace(sampleAssessment, `"recommendation": "APPROVED"`, `"recommendation": "MAYBE"`, 1)
	broken = strings.Replace(broken, `"overall_fit_score": 86.5`, `"overall_fit_score": 140`, 1)

	violations, err := ValidateAssessment(broken)

	require.NoError(t, err)
	require.Len(t, violations, 2)
	joined := strings.Join(violations, "\n")
	assert.Contains(t, joined, "recommendation")
	assert.Contains(t, joined, "overall_fit_score")
}

func TestValidateAssessmentReportsMissingFields(t *testing.T) {
	violations, err := ValidateAssessment(`{"candidate_name": "Jane"}`)

	require.NoError(t, err)
	assert.NotEmpty(t, violations)
	assert.Contains(t, strings.Join(violations, "\n"), "overall_fit_score")
}

func TestValidateAssessmentRejectsInvalidJSON(t *testing.T) {
	_, err := ValidateAssessment(`{not json`)

	assert.Error(t, err)
}

func TestATSResponseSchemaMatchesJSONSchema(t *testing.T) {
	s := ATSResponseSchema()

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Len(t, s.Required, 11)
	for _, field := range s.Required {
		assert.Contains(t, s.Properties, field)
	}
	assert.Equal(t, []string{"APPROVED", "REJECTED"}, s.Properties["recommendation"].Enum)
}

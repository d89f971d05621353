package services

import (
	"fmt"
	"path/filepath"
	"strings"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSystemInstruction is attached to every paired cache.
func (pb *PromptBuilder) BuildSystemInstruction() string {
	return `You are an expert HR and technical recruitment assistant specializing in strict resume-to-job-description matching.

You will receive two documents:
1. Job Description: role requirements, must-have skills, preferred skills and experience needed
2. Candidate Resume: education, experience, skills and projects

EVALUATION PRINCIPLES:
- Only evaluate what is explicitly stated in the resume. Do not infer capabilities.
- The job description requirements are minimum acceptable criteria.
- Every positive assessment must cite resume content that matches a JD requirement.

EVALUATION STEPS:
1. Mandatory requirements: check every required skill, minimum years of experience and required education or certification.
2. Technical skills: compare the resume against the JD line by line and compute the share of required skills met.
3. Experience: compare total and relevant years against the JD minimum and judge the quality of past projects.
4. Responsibilities: look for evidence that the candidate has performed the duties listed in the JD.
5. Decision: APPROVED only if every mandatory requirement is met and overall_fit_score is 80 or more; otherwise REJECTED.

FIT LEVELS:
- HIGH_FIT: 90% or more of the requirements met with strong evidence
- MEDIUM_FIT: 80-89% of the requirements met
- LOW_FIT: 70-79% of the requirements met
- NO_FIT: below 70%

Extract candidate_name, position_applied and company from the documents. key_strengths lists only skills or experience that directly match the JD. major_concerns lists every missing mandatory requirement or skill gap.`
}

// BuildAnalysisQuery is the user turn sent against a paired cache.
func (pb *PromptBuilder) BuildAnalysisQuery(structured bool, userQuery string) string {
	if q := strings.TrimSpace(userQuery); q != "" {
		return q
	}
	if structured {
		return "Analyze the resume against the job description."
	}
	return `Analyze the resume against the job description. Summarize the candidate's fit, list the key strengths and the major concerns, and end with a clear APPROVED or REJECTED recommendation.`
}

// BuildCacheDisplayName names a paired cache after its two documents.
func (pb *PromptBuilder) BuildCacheDisplayName(jdPath, resumePath string) string {
	return fmt.Sprintf("Cache with %s and %s", filepath.Base(jdPath), filepath.Base(resumePath))
}

// BuildSearchDocument flattens a scored result into the text that gets embedded for search.
func (pb *PromptBuilder) BuildSearchDocument(candidate, position, fitLevel string, strengths, concerns []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s\n", candidate)
	fmt.Fprintf(&b, "Position: %s\n", position)
	fmt.Fprintf(&b, "Fit level: %s\n", fitLevel)
	if len(strengths) > 0 {
		fmt.Fprintf(&b, "Strengths: %s\n", strings.Join(strengths, "; "))
	}
	if len(concerns) > 0 {
		fmt.Fprintf(&b, "Concerns: %s\n", strings.Join(concerns, "; "))
	}
	return strings.TrimSpace(b.String())
}

package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Retries and polls run without real waiting.
	newTimer = firedTimer
	os.Exit(m.Run())
}

func firedTimer(time.Duration) (<-chan time.Time, func() bool) {
	c := make(chan time.Time, 1)
	c <- time.Time{}
	return c, func() bool { return false }
}

const sampleAssessment = `{
  "candidate_name": "Jane Doe",
  "position_applied": "Backend Engineer",
  "company": "Acme",
  "overall_fit_score": 86.5,
  "recommendation": "APPROVED",
  "fit_level": "MEDIUM_FIT",
  "key_strengths": ["Go", "PostgreSQL"],
  "major_concerns": ["No Kubernetes experience"],
  "skills_assessment": {
    "required_skills_match": 85,
    "preferred_skills_match": 60,
    "critical_skills_missing": [],
    "skill_gaps_impact": "Low"
  },
  "experience_fit": {
    "years_required": 3,
    "years_candidate_has": 4.5,
    "experience_relevance": "High",
    "project_quality": "Good"
  },
  "hiring_decision_factors": {
    "technical_competency": 88,
    "experience_level": 80,
    "cultural_fit_indicators": 75,
    "growth_potential": 90,
    "immediate_productivity": 82
  }
}`

// writePDF creates a file that looks like a PDF to the loader.
func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n% "+name+"\n"), 0644))
	return path
}

// writeDocx creates a minimal Word document containing the given paragraphs.
func writeDocx(t *testing.T, dir, name string, paragraphs ...string) string {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}

	return writeZip(t, dir, name, files)
}

func writeZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for entry, content := range files {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

var errConnReset = errors.New("connection reset by peer")

// fakeEvaluator stands in for the Gemini client. Documents start in
// PROCESSING and become READY after pollsUntilReady status checks.
type fakeEvaluator struct {
	mu sync.Mutex

	pollsUntilReady int
	uploadErrs      []error
	score           func(cache EvaluationCache) (string, error)

	polls         map[string]int
	uploads       []string
	caches        []EvaluationCache
	deletedDocs   []string
	deletedCaches []string
}

func newFakeEvaluator(score func(EvaluationCache) (string, error)) *fakeEvaluator {
	return &fakeEvaluator{
		pollsUntilReady: 1,
		score:           score,
		polls:           make(map[string]int),
	}
}

func (f *fakeEvaluator) Upload(ctx context.Context, content []byte, mimeType, displayName string) (RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return RemoteDocument{}, err
		}
	}

	f.uploads = append(f.uploads, displayName)
	return RemoteDocument{
		Name:     "files/" + displayName,
		URI:      "https://files.example/" + displayName,
		MIMEType: mimeType,
		State:    DocumentProcessing,
	}, nil
}

func (f *fakeEvaluator) GetDocument(ctx context.Context, name string) (RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls[name]++
	state := DocumentProcessing
	if f.polls[name] >= f.pollsUntilReady {
		state = DocumentReady
	}
	return RemoteDocument{Name: name, URI: "https://files.example/" + strings.TrimPrefix(name, "files/"), State: state}, nil
}

func (f *fakeEvaluator) CreatePairedCache(ctx context.Context, jd, resume RemoteDocument, systemInstruction string, ttl time.Duration, displayName string) (EvaluationCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cache := EvaluationCache{Name: "cachedContents/" + strings.TrimPrefix(resume.Name, "files/"), DisplayName: displayName}
	f.caches = append(f.caches, cache)
	return cache, nil
}

func (f *fakeEvaluator) Score(ctx context.Context, cache EvaluationCache, prompt string, structured bool) (string, error) {
	return f.score(cache)
}

func (f *fakeEvaluator) DeleteDocument(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedDocs = append(f.deletedDocs, name)
	return nil
}

func (f *fakeEvaluator) DeleteCache(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedCaches = append(f.deletedCaches, name)
	return nil
}

func alwaysScore(text string) func(EvaluationCache) (string, error) {
	return func(EvaluationCache) (string, error) { return text, nil }
}

// writeTextPDF builds a real PDF with one page per entry in pages, each
// showing its text in Helvetica.
func writeTextPDF(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()

	n := len(pages)
	fontID := 3 + 2*n
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	}
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

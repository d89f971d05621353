package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
)

// TimestampFormat is how evaluation_timestamp is written: ISO-8601, UTC, Z suffix.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

const releaseTimeout = 30 * time.Second

// PairRequest asks for one resume to be scored against one job description.
type PairRequest struct {
	JDPath     string
	ResumePath string
	UserID     string
	Structured bool
}

type Analyzer interface {
	// Analyze never returns an error: every failure becomes a failed outcome.
	Analyze(ctx context.Context, client EvaluatorClient, req PairRequest) models.Outcome
}

type AnalyzerConfig struct {
	CacheTTL time.Duration
	Poll     PollPolicy
	Retry    RetryPolicy
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		CacheTTL: 1800 * time.Second,
		Poll:     DefaultPollPolicy(),
		Retry:    DefaultRetryPolicy(),
	}
}

type analyzer struct {
	repo    repositories.UserDataRepository
	parser  DocumentParserService
	index   ResultIndex
	prompts *PromptBuilder
	cfg     AnalyzerConfig
	log     *zap.Logger
	now     func() time.Time
}

// NewAnalyzer wires the single-pair pipeline. repo and index may be nil;
// without them nothing is persisted or indexed.
func NewAnalyzer(
	repo repositories.UserDataRepository,
	parser DocumentParserService,
	index ResultIndex,
	cfg AnalyzerConfig,
	log *zap.Logger,
) Analyzer {
	return &analyzer{
		repo:    repo,
		parser:  parser,
		index:   index,
		prompts: NewPromptBuilder(),
		cfg:     cfg,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// Analyze implements Analyzer.
func (a *analyzer) Analyze(ctx context.Context, client EvaluatorClient, req PairRequest) (outcome models.Outcome) {
	log := a.log.With(
		zap.String(logger.FieldJD, filepath.Base(req.JDPath)),
		zap.String(logger.FieldResume, filepath.Base(req.ResumePath)),
		zap.String(logger.FieldUser, req.UserID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("❌ Analysis panicked", zap.Any("panic", r))
			outcome = models.Failed(fmt.Sprintf("Error: %v", r))
		}
	}()

	outcome, err := a.analyze(ctx, client, req, log)
	if err != nil {
		log.Error("❌ Analysis failed", zap.Error(err))
		return models.Failed("Error: " + err.Error())
	}

	log.Info("✅ Analysis completed", zap.String("kind", string(outcome.Kind)))
	return outcome
}

// pairState collects the ids the analysis persisted so far.
type pairState struct {
	jdFileID     int
	resumeFileID int
	cacheID      int
}

func (a *analyzer) analyze(ctx context.Context, client EvaluatorClient, req PairRequest, log *zap.Logger) (models.Outcome, error) {
	// Step 1: Validate formats
	if err := a.parser.ValidateExtension(req.JDPath); err != nil {
		return models.Outcome{}, err
	}
	if err := a.parser.ValidateExtension(req.ResumePath); err != nil {
		return models.Outcome{}, err
	}

	// Step 2: Load content
	jdDoc, err := a.parser.LoadForUpload(ctx, req.JDPath)
	if err != nil {
		return models.Outcome{}, err
	}
	resumeDoc, err := a.parser.LoadForUpload(ctx, req.ResumePath)
	if err != nil {
		return models.Outcome{}, err
	}

	var state pairState

	// Releases run on every exit path below, in reverse order.
	var releases []func(context.Context)
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i](rctx)
		}
	}()

	// Step 3: Upload both documents
	log.Info("📤 Uploading documents")
	jd, err := a.upload(ctx, client, jdDoc, log)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to upload job description: %w", err)
	}
	releases = append(releases, a.releaseDocument(client, jd.Name, log))
	state.jdFileID = a.saveFile(ctx, req.UserID, req.JDPath, "jd", jdDoc, jd, log)

	resume, err := a.upload(ctx, client, resumeDoc, log)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to upload resume: %w", err)
	}
	releases = append(releases, a.releaseDocument(client, resume.Name, log))
	state.resumeFileID = a.saveFile(ctx, req.UserID, req.ResumePath, "resume", resumeDoc, resume, log)

	// Step 4: Wait until the evaluator has processed them
	if jd, err = awaitReady(ctx, client, jd, a.cfg.Poll); err != nil {
		return models.Outcome{}, err
	}
	if resume, err = awaitReady(ctx, client, resume, a.cfg.Poll); err != nil {
		return models.Outcome{}, err
	}

	// Step 5: Pair them in a cache
	displayName := a.prompts.BuildCacheDisplayName(req.JDPath, req.ResumePath)
	cache, err := client.CreatePairedCache(ctx, jd, resume, a.prompts.BuildSystemInstruction(), a.cfg.CacheTTL, displayName)
	if err != nil {
		return models.Outcome{}, err
	}
	releases = append(releases, a.releaseCache(client, cache.Name, log))
	log.Info("🗂️ Cache created", zap.String(logger.FieldCache, cache.Name))
	state.cacheID = a.saveCache(ctx, req.UserID, cache, state, log)

	// Step 6: Score
	log.Info("🤖 Scoring resume")
	text, err := client.Score(ctx, cache, a.prompts.BuildAnalysisQuery(req.Structured, ""), req.Structured)
	if err != nil {
		return models.Outcome{}, err
	}

	outcome := a.buildOutcome(text, req.Structured, log)
	a.saveOutcome(ctx, req, outcome, state, log)
	return outcome, nil
}

func (a *analyzer) upload(ctx context.Context, client EvaluatorClient, doc LoadedDocument, log *zap.Logger) (RemoteDocument, error) {
	return withRetry(ctx, a.cfg.Retry,
		func(ctx context.Context) (RemoteDocument, error) {
			return client.Upload(ctx, doc.Content, doc.MIMEType, doc.Filename)
		},
		func(attempt int, wait time.Duration, err error) {
			log.Warn("⚠️ Upload attempt failed, retrying",
				zap.String(logger.FieldFile, doc.Filename),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
}

func (a *analyzer) releaseDocument(client EvaluatorClient, name string, log *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if err := client.DeleteDocument(ctx, name); err != nil {
			log.Warn("⚠️ Failed to release remote document", zap.String(logger.FieldFile, name), zap.Error(err))
		}
	}
}

func (a *analyzer) releaseCache(client EvaluatorClient, name string, log *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if err := client.DeleteCache(ctx, name); err != nil {
			log.Warn("⚠️ Failed to release remote cache", zap.String(logger.FieldCache, name), zap.Error(err))
		}
	}
}

// buildOutcome turns the evaluator's text into an outcome. Structured
// responses that do not parse degrade to raw text.
func (a *analyzer) buildOutcome(text string, structured bool, log *zap.Logger) models.Outcome {
	if !structured {
		return models.RawText(text)
	}

	result, err := ParseAssessment(text)
	if err != nil {
		log.Warn("⚠️ Structured response did not parse, keeping raw text",
			zap.Error(err),
			zap.String("preview", logger.TruncateForLog(text, 200)),
		)
		return models.RawText(text)
	}

	InjectTimestamp(result, a.now())

	if encoded, err := json.Marshal(result); err == nil {
		if violations, err := ValidateAssessment(string(encoded)); err != nil {
			log.Warn("⚠️ Could not validate assessment", zap.Error(err))
		} else if len(violations) > 0 {
			log.Warn("⚠️ Assessment does not match the ATS schema", zap.Strings("violations", violations))
		}
	}

	return models.Scored(result)
}

// ParseAssessment decodes a structured response. The reply is decoded as-is
// when it is valid JSON; otherwise a fence wrapping the whole reply, or prose
// around a single object, is removed first. The top level must be an object.
// Numbers keep their exact textual form.
func ParseAssessment(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	if json.Valid([]byte(text)) {
		return decodeObject(text)
	}
	if inner, ok := unfence(text); ok && json.Valid([]byte(inner)) {
		return decodeObject(inner)
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		return decodeObject(text[start : end+1])
	}
	return nil, fmt.Errorf("%w: response contains no JSON object", ErrParse)
}

func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after the JSON value", ErrParse)
	}

	result, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: response is not a JSON object", ErrParse)
	}
	return result, nil
}

// unfence strips a markdown code fence that wraps the entire reply.
func unfence(text string) (string, bool) {
	if len(text) < 6 || !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") {
		return "", false
	}
	body := text[3 : len(text)-3]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
		// drop the language tag line
		body = body[nl+1:]
	}
	return strings.TrimSpace(body), true
}

// InjectTimestamp stamps the moment the evaluation completed.
func InjectTimestamp(result map[string]any, t time.Time) {
	result["evaluation_timestamp"] = t.UTC().Format(TimestampFormat)
}

// Persistence is best-effort: a store failure is logged and the analysis
// carries on. Ids are zero when nothing was saved.

func (a *analyzer) saveFile(ctx context.Context, userID, path, fileType string, doc LoadedDocument, remote RemoteDocument, log *zap.Logger) int {
	if a.repo == nil || userID == "" {
		return 0
	}

	remoteName := remote.Name
	id, err := a.repo.SaveFile(ctx, userID, models.FileRecord{
		Filename:     filepath.Base(path),
		FilePath:     path,
		FileType:     fileType,
		MimeType:     doc.MIMEType,
		GeminiFileID: &remoteName,
	})
	if err != nil {
		log.Error("❌ Failed to persist file record", zap.Error(&StoreError{Op: "save file", Err: err}))
		return 0
	}
	return id
}

func (a *analyzer) saveCache(ctx context.Context, userID string, cache EvaluationCache, state pairState, log *zap.Logger) int {
	if a.repo == nil || userID == "" || state.jdFileID == 0 || state.resumeFileID == 0 {
		return 0
	}

	id, err := a.repo.SaveCache(ctx, userID, models.CacheRecord{
		CacheName:    cache.Name,
		DisplayName:  cache.DisplayName,
		JDFileID:     state.jdFileID,
		ResumeFileID: state.resumeFileID,
		TTL:          int(a.cfg.CacheTTL / time.Second),
	})
	if err != nil {
		log.Error("❌ Failed to persist cache record", zap.Error(&StoreError{Op: "save cache", Err: err}))
		return 0
	}
	return id
}

func (a *analyzer) saveOutcome(ctx context.Context, req PairRequest, outcome models.Outcome, state pairState, log *zap.Logger) {
	if a.repo == nil || req.UserID == "" {
		return
	}

	resultJSON, err := encodeOutcome(outcome)
	if err != nil {
		log.Error("❌ Failed to encode analysis result", zap.Error(err))
		return
	}

	id, err := a.repo.SaveAnalysisResult(ctx, req.UserID, models.AnalysisRecord{
		CacheID:      state.cacheID,
		JDFileID:     state.jdFileID,
		ResumeFileID: state.resumeFileID,
		Kind:         outcome.Kind,
		ResultJSON:   resultJSON,
	})
	if err != nil {
		log.Error("❌ Failed to persist analysis result", zap.Error(&StoreError{Op: "save analysis result", Err: err}))
		return
	}

	if a.index == nil || outcome.Kind != models.OutcomeScored {
		return
	}
	result, err := models.DecodeAnalysisResult(resultJSON)
	if err != nil {
		return
	}
	if err := a.index.IndexAnalysis(ctx, req.UserID, id, filepath.Base(req.ResumePath), result); err != nil {
		log.Warn("⚠️ Failed to index analysis result", zap.Int("analysis_id", id), zap.Error(err))
	}
}

// encodeOutcome is the result_json stored for an outcome.
func encodeOutcome(outcome models.Outcome) (string, error) {
	var payload any
	switch outcome.Kind {
	case models.OutcomeScored:
		payload = outcome.Result
	case models.OutcomeRawText:
		payload = map[string]string{"text_result": outcome.Text}
	default:
		return "", errors.New("failed outcomes are not stored")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

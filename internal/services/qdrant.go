package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
)

// ResultIndex makes stored analyses searchable by meaning.
type ResultIndex interface {
	InitCollection(ctx context.Context) error
	IndexAnalysis(ctx context.Context, userID string, analysisID int, resumeFile string, result *models.AnalysisResult) error
	Search(ctx context.Context, userID, query string, limit int) ([]models.SearchHit, error)
}

type qdrantIndex struct {
	client         *qdrant.Client
	embedder       Embedder
	prompts        *PromptBuilder
	collectionName string
	vectorSize     uint64
	log            *zap.Logger
}

func NewQdrantIndex(urlStr, apiKey, collectionName string, embedder Embedder, log *zap.Logger) (ResultIndex, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantIndex{
		client:         client,
		embedder:       embedder,
		prompts:        NewPromptBuilder(),
		collectionName: collectionName,
		vectorSize:     768, // text-embedding-004
		log:            logger.OrNop(log),
	}, nil
}

// InitCollection implements ResultIndex.
func (q *qdrantIndex) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		q.log.Info("✅ Collection already exists", zap.String("collection", q.collectionName))
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.log.Info("✅ Qdrant collection created", zap.String("collection", q.collectionName))
	return nil
}

// IndexAnalysis implements ResultIndex. Re-indexing the same analysis
// overwrites its point.
func (q *qdrantIndex) IndexAnalysis(ctx context.Context, userID string, analysisID int, resumeFile string, result *models.AnalysisResult) error {
	text := q.prompts.BuildSearchDocument(result.Candidate(), result.Position(), result.Fit(), result.KeyStrengths, result.MajorConcerns)

	embedding, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(analysisPointID(userID, analysisID)),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(analysisPayload(userID, analysisID, resumeFile, result, text)),
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Search implements ResultIndex. Only the given user's analyses are searched.
func (q *qdrantIndex) Search(ctx context.Context, userID, query string, limit int) ([]models.SearchHit, error) {
	embedding, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_uuid", userID),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, hitFromPayload(point.Payload, point.Score))
	}
	return hits, nil
}

// analysisPointID is stable per (user, analysis).
func analysisPointID(userID string, analysisID int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("resume-screener/%s/%d", userID, analysisID))).String()
}

func analysisPayload(userID string, analysisID int, resumeFile string, result *models.AnalysisResult, text string) map[string]any {
	return map[string]any{
		"user_uuid":         userID,
		"analysis_id":       int64(analysisID),
		"resume_file":       resumeFile,
		"candidate_name":    result.Candidate(),
		"recommendation":    result.Verdict(),
		"overall_fit_score": result.Score(),
		"text":              text,
	}
}

func hitFromPayload(payload map[string]*qdrant.Value, score float32) models.SearchHit {
	hit := models.SearchHit{Similarity: score}

	if v, ok := payload["analysis_id"]; ok {
		hit.AnalysisID = int(v.GetIntegerValue())
	}
	if v, ok := payload["resume_file"]; ok {
		hit.ResumeFile = v.GetStringValue()
	}
	if v, ok := payload["candidate_name"]; ok {
		hit.CandidateName = v.GetStringValue()
	}
	if v, ok := payload["recommendation"]; ok {
		hit.Recommendation = v.GetStringValue()
	}
	if v, ok := payload["overall_fit_score"]; ok {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_DoubleValue:
			hit.FitScore = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			hit.FitScore = float64(kind.IntegerValue)
		}
	}
	return hit
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"google.golang.org/genai"
)

type DocumentState string

const (
	DocumentPending    DocumentState = "PENDING"
	DocumentProcessing DocumentState = "PROCESSING"
	DocumentReady      DocumentState = "READY"
	DocumentFailed     DocumentState = "FAILED"
)

// RemoteDocument is a file uploaded to the evaluator. It must be released
// with DeleteDocument once the analysis that uploaded it is over.
type RemoteDocument struct {
	Name     string
	URI      string
	MIMEType string
	State    DocumentState
}

// EvaluationCache pairs one JD and one resume for a single scoring call.
type EvaluationCache struct {
	Name        string
	DisplayName string
}

type EvaluatorClient interface {
	Upload(ctx context.Context, content []byte, mimeType, displayName string) (RemoteDocument, error)
	GetDocument(ctx context.Context, name string) (RemoteDocument, error)
	CreatePairedCache(ctx context.Context, jd, resume RemoteDocument, systemInstruction string, ttl time.Duration, displayName string) (EvaluationCache, error)
	Score(ctx context.Context, cache EvaluationCache, prompt string, structured bool) (string, error)
	DeleteDocument(ctx context.Context, name string) error
	DeleteCache(ctx context.Context, name string) error
}

// EvaluatorFactory builds a fresh client. Each analysis task gets its own.
type EvaluatorFactory func(ctx context.Context) (EvaluatorClient, error)

type geminiEvaluator struct {
	client    *genai.Client
	modelName string
}

func NewGeminiEvaluator(ctx context.Context, apiKey, model string) (EvaluatorClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiEvaluator{
		client:    client,
		modelName: model,
	}, nil
}

func NewGeminiEvaluatorFactory(apiKey, model string) EvaluatorFactory {
	return func(ctx context.Context) (EvaluatorClient, error) {
		return NewGeminiEvaluator(ctx, apiKey, model)
	}
}

// Upload implements EvaluatorClient. Connection-class failures come back as
// *TransientConnectionError.
func (g *geminiEvaluator) Upload(ctx context.Context, content []byte, mimeType, displayName string) (RemoteDocument, error) {
	file, err := g.client.Files.Upload(ctx, bytes.NewReader(content), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return RemoteDocument{}, classifyRemoteError(fmt.Errorf("failed to upload %s: %w", displayName, err))
	}
	return toRemoteDocument(file), nil
}

// GetDocument implements EvaluatorClient.
func (g *geminiEvaluator) GetDocument(ctx context.Context, name string) (RemoteDocument, error) {
	file, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return RemoteDocument{}, classifyRemoteError(fmt.Errorf("failed to get file %s: %w", name, err))
	}
	return toRemoteDocument(file), nil
}

// CreatePairedCache implements EvaluatorClient. It is not idempotent.
func (g *geminiEvaluator) CreatePairedCache(ctx context.Context, jd, resume RemoteDocument, systemInstruction string, ttl time.Duration, displayName string) (EvaluationCache, error) {
	cfg := &genai.CreateCachedContentConfig{
		DisplayName:       displayName,
		TTL:               ttl,
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Contents: []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromURI(jd.URI, jd.MIMEType),
				genai.NewPartFromURI(resume.URI, resume.MIMEType),
			}, genai.RoleUser),
		},
	}

	cached, err := g.client.Caches.Create(ctx, g.modelName, cfg)
	if err != nil {
		return EvaluationCache{}, &EvaluationError{Op: "create cache", Err: err}
	}

	name := strings.TrimSpace(cached.Name)
	if name == "" {
		return EvaluationCache{}, &EvaluationError{Op: "create cache", Err: errors.New("gemini api returned empty cache name")}
	}

	return EvaluationCache{Name: name, DisplayName: displayName}, nil
}

// Score implements EvaluatorClient.
func (g *geminiEvaluator) Score(ctx context.Context, cache EvaluationCache, prompt string, structured bool) (string, error) {
	config := &genai.GenerateContentConfig{CachedContent: cache.Name}
	if structured {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = ATSResponseSchema()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", &EvaluationError{Op: "generate content", Err: err}
	}

	if resp == nil {
		return "", &EvaluationError{Op: "generate content", Err: errors.New("no response generated (nil response)")}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &EvaluationError{Op: "generate content", Err: errors.New("no text content in response")}
	}

	return text, nil
}

// DeleteDocument implements EvaluatorClient.
func (g *geminiEvaluator) DeleteDocument(ctx context.Context, name string) error {
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}
	return nil
}

// DeleteCache implements EvaluatorClient.
func (g *geminiEvaluator) DeleteCache(ctx context.Context, name string) error {
	if _, err := g.client.Caches.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return nil
}

func toRemoteDocument(f *genai.File) RemoteDocument {
	if f == nil {
		return RemoteDocument{State: DocumentPending}
	}
	return RemoteDocument{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    documentState(f.State),
	}
}

func documentState(s genai.FileState) DocumentState {
	switch s {
	case genai.FileStateProcessing:
		return DocumentProcessing
	case genai.FileStateActive:
		return DocumentReady
	case genai.FileStateFailed:
		return DocumentFailed
	default:
		return DocumentPending
	}
}

func classifyRemoteError(err error) error {
	if isTransientError(err) {
		return &TransientConnectionError{Err: err}
	}
	return err
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code >= 500
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

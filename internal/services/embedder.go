package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

// maxEmbedBytes keeps embedding input around 10000 tokens.
const maxEmbedBytes = 40000

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type geminiEmbedder struct {
	client     *genai.Client
	embedModel string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, embedModel string) (Embedder, error) {
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

	return &geminiEmbedder{
		client:     client,
		embedModel: embedModel,
	}, nil
}

// Embed implements Embedder.
func (g *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(truncateUTF8(text, maxEmbedBytes)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// truncateUTF8 cuts text to at most limit bytes without splitting a rune.
func truncateUTF8(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	n := limit
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"alfredoptarigan/resume-screener/internal/config"
	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
	"alfredoptarigan/resume-screener/internal/services"
)

// Rebuilds the semantic search index for the users given as arguments.
//
//	go run ./scripts/reindex_results.go <user_uuid>...
func main() {
	log.Println("🚀 Starting result re-indexing...")

	if len(os.Args) < 2 {
		log.Fatalf("❌ Usage: reindex_results <user_uuid>...")
	}

	// Load configuration
	cfg := config.Load()
	if cfg.Qdrant.URL == "" {
		log.Fatalf("❌ QDRANT_URL is not set")
	}

	zl, err := logger.New(false, false)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}

	db, err := config.InitDatabase(cfg, zl)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	repo := repositories.NewUserDataRepository(repositories.NewPostgresStore(db))

	ctx := context.Background()

	embedder, err := services.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	index, err := services.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, embedder, zl)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := index.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	successCount := 0
	skipCount := 0
	failCount := 0

	for _, userID := range os.Args[1:] {
		log.Printf("\n👤 Processing user: %s", userID)

		rec, err := repo.FindUser(ctx, userID)
		if err != nil {
			log.Printf("   ❌ Failed to load user: %v", err)
			failCount++
			continue
		}

		for _, a := range rec.AnalysisResults {
			if a.Kind == models.OutcomeRawText {
				skipCount++
				continue
			}

			result, err := models.DecodeAnalysisResult(a.ResultJSON)
			if err != nil || result.TextResult != nil {
				skipCount++
				continue
			}

			resumeFile := ""
			if f, ok := rec.FileByID(a.ResumeFileID); ok {
				resumeFile = filepath.Base(f.Filename)
			}

			if err := index.IndexAnalysis(ctx, userID, a.ID, resumeFile, result); err != nil {
				log.Printf("   ❌ Failed to index analysis %d: %v", a.ID, err)
				failCount++
				continue
			}
			successCount++
		}

		log.Printf("   ✅ Indexed %d analyses so far", successCount)
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Re-indexing Summary:")
	log.Printf("   ✅ Indexed: %d analyses", successCount)
	log.Printf("   ⏭️  Skipped: %d free-text or unreadable analyses", skipCount)
	log.Printf("   ❌ Failed: %d", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		os.Exit(1)
	}
}

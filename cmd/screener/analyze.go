package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/config"
	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
	"alfredoptarigan/resume-screener/internal/services"
)

var analyzeCommand = &cobra.Command{
	Use:   "analyze",
	Short: "Score resumes against a job description",
	Long: `Runs the bulk analysis over local files and prints the results as JSON.

Resumes come from --resume (repeatable) and from every .pdf/.docx file under --dir.
With --user the results are stored for that user in the configured store.`,
	RunE: runAnalyzeCmd,
}

var (
	analyzeJD         string
	analyzeResumes    []string
	analyzeDir        string
	analyzeUser       string
	analyzeWorkers    int
	analyzeFreeText   bool
	analyzeAPIKey     string
	analyzeVerbose    bool
	analyzeOutputPath string
)

func init() {
	analyzeCommand.Flags().StringVarP(&analyzeJD, "jd", "j", "", "Path to the job description (pdf or docx)")
	analyzeCommand.Flags().StringSliceVarP(&analyzeResumes, "resume", "r", nil, "Path to a resume (repeatable)")
	analyzeCommand.Flags().StringVarP(&analyzeDir, "dir", "d", "", "Directory scanned recursively for resumes")
	analyzeCommand.Flags().StringVarP(&analyzeUser, "user", "u", "", "User id to store results under (optional)")
	analyzeCommand.Flags().IntVarP(&analyzeWorkers, "workers", "w", 0, "Concurrent analyses (defaults to ANALYSIS_MAX_WORKERS)")
	analyzeCommand.Flags().BoolVar(&analyzeFreeText, "free-text", false, "Ask for a free-text assessment instead of structured JSON")
	analyzeCommand.Flags().StringVar(&analyzeAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	analyzeCommand.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Log every pipeline step")
	analyzeCommand.Flags().StringVarP(&analyzeOutputPath, "output", "o", "", "Write JSON to this file instead of stdout")

	_ = analyzeCommand.MarkFlagRequired("jd")

	rootCmd.AddCommand(analyzeCommand)
}

func runAnalyzeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if analyzeAPIKey != "" {
		cfg.Gemini.APIKey = analyzeAPIKey
	}
	if cfg.Gemini.APIKey == "" {
		return errors.New("gemini API key is required (set --api-key or GEMINI_API_KEY)")
	}

	resumes, err := collectResumes(analyzeResumes, analyzeDir)
	if err != nil {
		return err
	}
	if len(resumes) == 0 {
		return errors.New("no resumes given: use --resume or --dir")
	}

	zl := zap.NewNop()
	if analyzeVerbose {
		if zl, err = logger.New(false, true); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer zl.Sync()
	}

	var repo repositories.UserDataRepository
	if analyzeUser != "" {
		store := repositories.NewMemoryStore()
		if cfg.Database.Driver == config.StoreDriverPostgres {
			db, err := config.InitDatabase(cfg, zl)
			if err != nil {
				return err
			}
			store = repositories.NewPostgresStore(db)
		}
		repo = repositories.NewUserDataRepository(store)
	}

	analyzer := services.NewAnalyzer(repo, services.NewDocumentParserService(zl), nil, services.AnalyzerConfig{
		CacheTTL: cfg.Analysis.CacheTTL,
		Poll:     services.PollPolicy{Interval: cfg.Analysis.PollInterval, MaxAttempts: cfg.Analysis.PollMaxAttempts},
		Retry: services.RetryPolicy{
			MaxAttempts: cfg.Analysis.RetryMaxAttempts,
			Multiplier:  cfg.Analysis.RetryMultiplier,
			MinWait:     cfg.Analysis.RetryMinWait,
			MaxWait:     cfg.Analysis.RetryMaxWait,
		},
	}, zl)

	orchestrator := services.NewOrchestrator(
		analyzer,
		services.NewGeminiEvaluatorFactory(cfg.Gemini.APIKey, cfg.Gemini.Model),
		repo,
		cfg.Analysis.MaxWorkers,
		cfg.Analysis.TaskTimeout,
		zl,
	)

	stderr := cmd.ErrOrStderr()
	outcomes, summary := orchestrator.Run(cmd.Context(), services.BulkRequest{
		JDPath:      analyzeJD,
		ResumePaths: resumes,
		UserID:      analyzeUser,
		MaxWorkers:  analyzeWorkers,
		Structured:  !analyzeFreeText,
		OnProgress: func(e services.ProgressEvent) {
			fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", e.Completed, e.Total, filepath.Base(e.ResumePath), e.Kind)
		},
	})
	fmt.Fprintf(stderr, "Done in %s: %d succeeded, %d failed\n", summary.Elapsed.Round(time.Millisecond), summary.Succeeded, summary.Failed)

	response := models.AnalysisResponse{AnalysisResults: make([]models.AnalysisEntry, 0, len(outcomes))}
	for _, path := range resumes {
		if outcome, ok := outcomes[path]; ok {
			response.AnalysisResults = append(response.AnalysisResults, models.NewAnalysisEntry(path, outcome))
		}
	}

	out := cmd.OutOrStdout()
	if analyzeOutputPath != "" {
		f, err := os.Create(analyzeOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}

// collectResumes merges explicit paths with the pdf/docx files under dir,
// dropping duplicates.
func collectResumes(paths []string, dir string) ([]string, error) {
	resumes := slices.Clone(paths)

	if dir != "" {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".pdf", ".docx":
				resumes = append(resumes, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	seen := make(map[string]bool, len(resumes))
	unique := resumes[:0]
	for _, r := range resumes {
		if seen[r] {
			continue
		}
		seen[r] = true
		unique = append(unique, r)
	}
	return unique, nil
}

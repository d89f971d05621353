package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
	"alfredoptarigan/resume-screener/internal/services"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

type ResultHandler struct {
	repo  repositories.UserDataRepository
	index services.ResultIndex
	log   *zap.Logger
}

// NewResultHandler builds the read side. index may be nil when semantic
// search is not configured.
func NewResultHandler(repo repositories.UserDataRepository, index services.ResultIndex, log *zap.Logger) *ResultHandler {
	return &ResultHandler{
		repo:  repo,
		index: index,
		log:   logger.OrNop(log),
	}
}

// HandleGetResults handles GET /results/:user_uuid
func (h *ResultHandler) HandleGetResults(c *fiber.Ctx) error {
	userID := c.Params("user_uuid")

	rec, err := h.repo.FindUser(c.UserContext(), userID)
	if err != nil {
		return h.lookupError(c, err, "User not found")
	}
	if len(rec.AnalysisResults) == 0 {
		return notFound(c, "No analysis results found for this user")
	}

	analyses := make([]any, 0, len(rec.AnalysisResults))
	for _, a := range rec.AnalysisResults {
		analyses = append(analyses, models.NewAnalysisView(a))
	}

	return c.JSON(models.ResultsResponse{
		UserUUID:     userID,
		TotalResults: len(analyses),
		Analyses:     analyses,
	})
}

// HandleGetResult handles GET /results/:user_uuid/:analysis_id
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	analysisID, err := c.ParamsInt("analysis_id")
	if err != nil || analysisID < 1 {
		return badRequest(c, "Invalid analysis ID format")
	}

	rec, err := h.repo.GetAnalysisResult(c.UserContext(), c.Params("user_uuid"), analysisID)
	if err != nil {
		return h.lookupError(c, err, "Analysis result not found")
	}

	return c.JSON(rec)
}

// HandleExport handles GET /results/:user_uuid/export
func (h *ResultHandler) HandleExport(c *fiber.Ctx) error {
	userID := c.Params("user_uuid")

	rec, err := h.repo.FindUser(c.UserContext(), userID)
	if err != nil {
		return h.lookupError(c, err, "User not found")
	}
	if len(rec.AnalysisResults) == 0 {
		return notFound(c, "No analysis results found for this user")
	}

	var buf bytes.Buffer
	if err := services.WriteResultsWorkbook(&buf, userID, rec.AnalysisResults); err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="analyses_%s.xlsx"`, userID))
	return c.Send(buf.Bytes())
}

// HandleSearch handles GET /results/:user_uuid/search?q=...
func (h *ResultHandler) HandleSearch(c *fiber.Ctx) error {
	if h.index == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Semantic search is not configured",
		})
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return badRequest(c, "q is required")
	}

	limit := c.QueryInt("limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		return badRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
	}

	userID := c.Params("user_uuid")
	hits, err := h.index.Search(c.UserContext(), userID, query, limit)
	if err != nil {
		h.log.Error("❌ Search failed", zap.String(logger.FieldUser, userID), zap.Error(err))
		return internalError(c, errors.New("search failed"))
	}

	return c.JSON(fiber.Map{
		"user_uuid": userID,
		"query":     query,
		"results":   hits,
	})
}

// lookupError maps repository lookups onto 404 and 500 responses.
func (h *ResultHandler) lookupError(c *fiber.Ctx, err error, notFoundMsg string) error {
	if errors.Is(err, repositories.ErrUserNotFound) || errors.Is(err, repositories.ErrAnalysisNotFound) {
		return notFound(c, notFoundMsg)
	}
	h.log.Error("❌ Failed to read user data", zap.Error(err))
	return internalError(c, errors.New("failed to read stored results"))
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": msg,
	})
}

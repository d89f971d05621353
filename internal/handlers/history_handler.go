package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/resume-screener/internal/repositories"
)

type HistoryHandler struct {
	repo repositories.UserDataRepository
}

func NewHistoryHandler(repo repositories.UserDataRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// HandleListCaches handles GET /caches/:user_uuid
func (h *HistoryHandler) HandleListCaches(c *fiber.Ctx) error {
	userID := c.Params("user_uuid")

	caches, err := h.repo.ListCaches(c.UserContext(), userID)
	if err != nil {
		return historyError(c, err)
	}

	return c.JSON(fiber.Map{
		"user_uuid": userID,
		"total":     len(caches),
		"caches":    caches,
	})
}

// HandleListBatchJobs handles GET /batch-jobs/:user_uuid
func (h *HistoryHandler) HandleListBatchJobs(c *fiber.Ctx) error {
	userID := c.Params("user_uuid")

	jobs, err := h.repo.ListBatchJobs(c.UserContext(), userID)
	if err != nil {
		return historyError(c, err)
	}

	return c.JSON(fiber.Map{
		"user_uuid":  userID,
		"total":      len(jobs),
		"batch_jobs": jobs,
	})
}

func historyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return notFound(c, "User not found")
	}
	return internalError(c, errors.New("failed to read stored history"))
}

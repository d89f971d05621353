package handlers

import (
	"fmt"
	"mime/multipart"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/services"
)

type UploadHandler struct {
	storageService services.StorageService
	orchestrator   services.Orchestrator
	validate       *validator.Validate
	maxFileSize    int64
	maxWorkers     int
	log            *zap.Logger
}

func NewUploadHandler(
	storageService services.StorageService,
	orchestrator services.Orchestrator,
	validate *validator.Validate,
	maxFileSize int64,
	maxWorkers int,
	log *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		orchestrator:   orchestrator,
		validate:       validate,
		maxFileSize:    maxFileSize,
		maxWorkers:     maxWorkers,
		log:            logger.OrNop(log),
	}
}

// HandleBulkUpload handles POST /bulk-upload/
func (h *UploadHandler) HandleBulkUpload(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	jdFile, err := h.formFile(c, "jd")
	if err != nil {
		return badRequest(c, err.Error())
	}
	zipFile, err := h.formFile(c, "resumes_zip")
	if err != nil {
		return badRequest(c, err.Error())
	}

	workspace, err := h.storageService.NewWorkspace("bulk")
	if err != nil {
		return internalError(c, err)
	}
	defer h.removeWorkspace(workspace)

	jdPath, err := h.storageService.SaveFile(jdFile, filepath.Join(workspace, "jd"))
	if err != nil {
		return internalError(c, fmt.Errorf("failed to save job description: %w", err))
	}
	zipPath, err := h.storageService.SaveFile(zipFile, filepath.Join(workspace, "archive"))
	if err != nil {
		return internalError(c, fmt.Errorf("failed to save zip file: %w", err))
	}

	resumePaths, err := h.storageService.ExtractPDFs(zipPath, filepath.Join(workspace, "resumes"))
	if err != nil {
		return badRequest(c, fmt.Sprintf("Invalid zip file: %v", err))
	}
	if len(resumePaths) == 0 {
		return badRequest(c, "No PDF resumes found in the zip file")
	}

	h.log.Info("📦 Bulk upload received",
		zap.String(logger.FieldUser, req.UserUUID),
		zap.String(logger.FieldJD, jdFile.Filename),
		zap.Int(logger.FieldTotal, len(resumePaths)),
	)

	return h.analyze(c, req, jdPath, resumePaths)
}

// HandleUpload handles POST /upload/
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	jdFile, err := h.formFile(c, "jd")
	if err != nil {
		return badRequest(c, err.Error())
	}
	resumeFile, err := h.formFile(c, "resume")
	if err != nil {
		return badRequest(c, err.Error())
	}

	workspace, err := h.storageService.NewWorkspace("upload")
	if err != nil {
		return internalError(c, err)
	}
	defer h.removeWorkspace(workspace)

	jdPath, err := h.storageService.SaveFile(jdFile, filepath.Join(workspace, "jd"))
	if err != nil {
		return internalError(c, fmt.Errorf("failed to save job description: %w", err))
	}
	resumePath, err := h.storageService.SaveFile(resumeFile, filepath.Join(workspace, "resume"))
	if err != nil {
		return internalError(c, fmt.Errorf("failed to save resume: %w", err))
	}

	return h.analyze(c, req, jdPath, []string{resumePath})
}

func (h *UploadHandler) analyze(c *fiber.Ctx, req models.UploadRequest, jdPath string, resumePaths []string) error {
	outcomes, summary := h.orchestrator.Run(c.UserContext(), services.BulkRequest{
		JDPath:      jdPath,
		ResumePaths: resumePaths,
		UserID:      req.UserUUID,
		MaxWorkers:  req.Workers(h.maxWorkers),
		Structured:  req.WantsStructured(),
	})

	h.log.Info("✅ Analysis request finished",
		zap.String(logger.FieldUser, req.UserUUID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration(logger.FieldElapsed, summary.Elapsed),
	)

	response := models.AnalysisResponse{AnalysisResults: make([]models.AnalysisEntry, 0, len(outcomes))}
	seen := make(map[string]bool, len(resumePaths))
	for _, path := range resumePaths {
		outcome, ok := outcomes[path]
		if !ok || seen[path] {
			continue
		}
		seen[path] = true
		response.AnalysisResults = append(response.AnalysisResults, models.NewAnalysisEntry(path, outcome))
	}

	return c.JSON(response)
}

func (h *UploadHandler) parseRequest(c *fiber.Ctx) (models.UploadRequest, error) {
	req := models.UploadRequest{
		UserUUID:   c.FormValue("user_uuid"),
		MaxWorkers: c.FormValue("max_workers"),
		Structured: c.FormValue("structured"),
	}
	if err := h.validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

func (h *UploadHandler) formFile(c *fiber.Ctx, field string) (*multipart.FileHeader, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file is required", field)
	}
	if file.Size > h.maxFileSize {
		return nil, fmt.Errorf("%s file too large. Max size: %d bytes", field, h.maxFileSize)
	}
	return file, nil
}

func (h *UploadHandler) removeWorkspace(dir string) {
	if err := h.storageService.RemoveWorkspace(dir); err != nil {
		h.log.Warn("⚠️ Failed to remove workspace", zap.String("dir", dir), zap.Error(err))
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

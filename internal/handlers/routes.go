package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

var Endpoints = []string{
	"POST /bulk-upload/",
	"POST /upload/",
	"GET /results/:user_uuid",
	"GET /results/:user_uuid/:analysis_id",
	"GET /results/:user_uuid/export",
	"GET /results/:user_uuid/search?q=",
	"GET /caches/:user_uuid",
	"GET /batch-jobs/:user_uuid",
	"GET /api/v1/health",
}

func RegisterRoutes(app *fiber.App, upload *UploadHandler, results *ResultHandler, history *HistoryHandler) {
	// Health check
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	app.Post("/bulk-upload", upload.HandleBulkUpload)
	app.Post("/upload", upload.HandleUpload)

	// export and search must be matched before :analysis_id
	app.Get("/results/:user_uuid/export", results.HandleExport)
	app.Get("/results/:user_uuid/search", results.HandleSearch)
	app.Get("/results/:user_uuid/:analysis_id", results.HandleGetResult)
	app.Get("/results/:user_uuid", results.HandleGetResults)

	app.Get("/caches/:user_uuid", history.HandleListCaches)
	app.Get("/batch-jobs/:user_uuid", history.HandleListBatchJobs)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "Resume Screener API",
			"version":   "1.0.0",
			"endpoints": Endpoints,
		})
	})
}

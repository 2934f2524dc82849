// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/customs-dev/customs/internal/config"
	"github.com/customs-dev/customs/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	Ledger  Ledger // optional
	Uploads config.UploadConfig
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Upload UploadHandler
	Files  FileHandler
	Ledger LedgerHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Ledger),
		Upload: NewUploadHandler(deps.Store, deps.Ledger, deps.Uploads),
		Files:  NewFileHandler(deps.Store),
		Ledger: NewLedgerHandler(deps.Ledger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Upload normalization
	uploadGroup := e.Group("/api/uploads")
	uploadGroup.POST("", handlers.Upload.HandleUpload)
	uploadGroup.POST("/inspect", handlers.Upload.HandleInspect)
	uploadGroup.GET("/limits", handlers.Upload.HandleLimits)

	// Stored files
	fileGroup := e.Group("/api/files")
	fileGroup.GET("", handlers.Files.HandleListFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.GET("/:id/content", handlers.Files.HandleGetFileContent)
	fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	fileGroup.PUT("/:id", handlers.Files.HandleRenameFile)

	// Outcome ledger
	ledgerGroup := e.Group("/api/ledger")
	ledgerGroup.GET("/outcomes", handlers.Ledger.HandleRecentOutcomes)
	ledgerGroup.GET("/faults", handlers.Ledger.HandleRecentFaults)
	ledgerGroup.GET("/stats", handlers.Ledger.HandleStats)
}

// SetupMiddleware configures the error handler
func SetupMiddleware(e *echo.Echo, showErrorDetails bool) {
	e.HTTPErrorHandler = NewErrorHandler(showErrorDetails)
}

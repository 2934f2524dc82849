// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/customs-dev/customs/internal/models"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles upload normalization
type UploadHandler interface {
	HandleUpload(c echo.Context) error
	HandleInspect(c echo.Context) error
	HandleLimits(c echo.Context) error
}

// FileHandler handles operations on stored files
type FileHandler interface {
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleGetFileContent(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// LedgerHandler exposes the outcome ledger
type LedgerHandler interface {
	HandleRecentOutcomes(c echo.Context) error
	HandleRecentFaults(c echo.Context) error
	HandleStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Ledger records normalized batches. *ledger.Ledger implements it; the
// interface allows mocking in tests.
type Ledger interface {
	Record(ctx context.Context, records []models.UploadRecord) error
	RecordFault(ctx context.Context, f models.FaultRecord) error
	Recent(ctx context.Context, limit int) ([]models.UploadRecord, error)
	RecentFaults(ctx context.Context, limit int) ([]models.FaultRecord, error)
	Stats(ctx context.Context) (*models.LedgerStats, error)
	Ping(ctx context.Context) error
}

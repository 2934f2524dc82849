// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	ledger  Ledger
}

// NewHealthHandler creates a new health handler. ledger may be nil.
func NewHealthHandler(version string, ledger Ledger) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		ledger:  ledger,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	status := "ok"
	code := http.StatusOK
	if h.ledger != nil {
		if err := h.ledger.Ping(c.Request().Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, map[string]interface{}{
		"status":  status,
		"version": h.version,
	})
}

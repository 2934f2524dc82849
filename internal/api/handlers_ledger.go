// handlers_ledger.go - Outcome ledger handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// LedgerHandlerImpl implements the LedgerHandler interface
type LedgerHandlerImpl struct {
	ledger Ledger
}

// NewLedgerHandler creates a new ledger handler instance
func NewLedgerHandler(ledger Ledger) LedgerHandler {
	return &LedgerHandlerImpl{ledger: ledger}
}

// HandleRecentOutcomes returns the latest normalized outcomes
func (h *LedgerHandlerImpl) HandleRecentOutcomes(c echo.Context) error {
	if h.ledger == nil {
		return NewServiceUnavailableError("ledger is not configured")
	}
	records, err := h.ledger.Recent(c.Request().Context(), queryLimit(c, 50, 1000))
	if err != nil {
		return NewInternalError("failed to read ledger", err)
	}
	return respond(c, http.StatusOK, records)
}

// HandleRecentFaults returns the latest aborted batches
func (h *LedgerHandlerImpl) HandleRecentFaults(c echo.Context) error {
	if h.ledger == nil {
		return NewServiceUnavailableError("ledger is not configured")
	}
	faults, err := h.ledger.RecentFaults(c.Request().Context(), queryLimit(c, 50, 1000))
	if err != nil {
		return NewInternalError("failed to read ledger", err)
	}
	return respond(c, http.StatusOK, faults)
}

// HandleStats returns aggregate ledger counters
func (h *LedgerHandlerImpl) HandleStats(c echo.Context) error {
	if h.ledger == nil {
		return NewServiceUnavailableError("ledger is not configured")
	}
	stats, err := h.ledger.Stats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to read ledger", err)
	}
	return respond(c, http.StatusOK, stats)
}

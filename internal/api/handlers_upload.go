// handlers_upload.go - Upload normalization handlers
package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/customs-dev/customs/internal/config"
	"github.com/customs-dev/customs/internal/logging"
	"github.com/customs-dev/customs/internal/models"
	"github.com/customs-dev/customs/internal/storage"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
)

// sessionCookie is logged with security faults when the client sends it.
const sessionCookie = "session_id"

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store   storage.Store
	ledger  Ledger
	uploads config.UploadConfig
}

// NewUploadHandler creates a new upload handler instance. ledger may be nil.
func NewUploadHandler(store storage.Store, ledger Ledger, uploads config.UploadConfig) UploadHandler {
	return &UploadHandlerImpl{
		store:   store,
		ledger:  ledger,
		uploads: uploads,
	}
}

// HandleUpload receives a multipart request, normalizes every file field and
// stores the files that arrived intact. Client failures are reported per
// field; a server or security fault aborts the whole batch.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	ctx := c.Request().Context()
	batchID := uuid.NewString()
	logger := logging.WithFields(ctx, "batch_id", batchID)

	coll, ch, err := upload.FromRequest(c.Request(), h.uploads.ChannelSettings(logger))
	if err != nil {
		return h.reject(c, batchID, err)
	}
	defer func() {
		if err := ch.Cleanup(); err != nil {
			logger.Warn("failed to remove temporary uploads", "error", err)
		}
	}()

	limits := ch.Limits()
	batch := &models.UploadBatch{
		BatchID:  batchID,
		Trusted:  true,
		Count:    coll.Len(),
		Outcomes: make([]models.UploadRecord, 0, coll.Len()),
	}
	now := time.Now().UTC()

	for i, o := range coll.All() {
		rec := newRecord(batchID, i, o, limits, now)
		if f, ok := o.(*upload.File); ok {
			info, err := h.store.Adopt(ctx, f)
			if err != nil {
				h.discard(ctx, logger, batch.Files)
				return h.reject(c, batchID, err)
			}
			rec.FileID = info.ID
			batch.Files = append(batch.Files, info)
		}
		batch.Outcomes = append(batch.Outcomes, rec)
	}

	if h.ledger != nil {
		if err := h.ledger.Record(ctx, batch.Outcomes); err != nil {
			logger.Error("failed to record batch", "error", err)
		}
	}

	logger.Info("upload batch normalized",
		"outcomes", batch.Count,
		"stored", len(batch.Files),
	)
	return respond(c, statusOf(len(batch.Files)), batch)
}

// HandleInspect normalizes a caller supplied descriptor (JSON or YAML in the
// request body) without touching any file. The descriptor is not trusted, so
// the authenticity check is skipped. Form limits for oversize reports come
// from the query string (?MAX_FILE_SIZE=).
func (h *UploadHandlerImpl) HandleInspect(c echo.Context) error {
	batchID := uuid.NewString()

	d, err := upload.DecodeDescriptor(c.Request().Body)
	if err != nil {
		return NewBadRequestError("invalid descriptor", err)
	}

	coll, err := upload.New(d)
	if err != nil {
		return h.reject(c, batchID, err)
	}

	limits := upload.StaticLimits{
		System: h.uploads.SystemMaxUploadBytes(),
		Form:   h.uploads.FormMaxUploadBytes(c.QueryParams()),
	}
	batch := &models.UploadBatch{
		BatchID:  batchID,
		Count:    coll.Len(),
		Outcomes: make([]models.UploadRecord, 0, coll.Len()),
	}
	now := time.Now().UTC()
	for i, o := range coll.All() {
		batch.Outcomes = append(batch.Outcomes, newRecord(batchID, i, o, limits, now))
	}
	return respond(c, http.StatusOK, batch)
}

// HandleLimits returns the upload limits in force.
func (h *UploadHandlerImpl) HandleLimits(c echo.Context) error {
	sys := h.uploads.SystemMaxUploadBytes()
	human := "unlimited"
	if sys < math.MaxInt64 {
		human = bytes.Format(sys)
	}
	maxFiles := h.uploads.MaxFileUploadsLimit()
	if maxFiles == math.MaxInt64 {
		maxFiles = 0
	}
	extensions := h.uploads.Extensions()
	if extensions == nil {
		extensions = []string{}
	}

	return respond(c, http.StatusOK, &models.UploadLimits{
		Enabled:           h.uploads.IsEnabled(),
		WorkingPath:       h.uploads.UploadWorkingPath(),
		SystemMaxBytes:    sys,
		SystemMaxHuman:    human,
		MaxFileUploads:    maxFiles,
		BlockedExtensions: extensions,
	})
}

// reject logs and records a batch that could not be normalized and returns
// the API error for it.
func (h *UploadHandlerImpl) reject(c echo.Context, batchID string, err error) error {
	ctx := c.Request().Context()
	logger := logging.WithFields(ctx, "batch_id", batchID)

	var serverFault *upload.ServerFault
	var securityFault *upload.SecurityFault
	fault := models.FaultRecord{
		BatchID:    batchID,
		RemoteIP:   c.RealIP(),
		RequestID:  logging.RequestID(ctx),
		RecordedAt: time.Now().UTC(),
	}

	switch {
	case errors.As(err, &securityFault):
		fault.Fault = "security"
		fault.FieldName = securityFault.FieldName
		fault.Code = int(securityFault.Code)
		fault.Message = securityFaultMessage
		fault.Reason = securityFault.Reason.String()
		var session string
		if cookie, cerr := c.Cookie(sessionCookie); cerr == nil {
			session = cookie.Value
		}
		logger.Warn("upload rejected: security concern",
			"time", fault.RecordedAt,
			"remote_ip", fault.RemoteIP,
			"session_id", session,
			"user_agent", c.Request().UserAgent(),
			"field", fault.FieldName,
			"reason", fault.Reason,
			"code", fault.Code,
			"error", err,
		)
	case errors.As(err, &serverFault):
		fault.Fault = "server"
		fault.FieldName = serverFault.FieldName
		fault.Code = int(serverFault.Code)
		fault.Message = serverFault.Error()
		fault.Reason = serverFault.Reason.String()
		logger.Error("upload aborted: server fault",
			"field", fault.FieldName,
			"reason", fault.Reason,
			"code", fault.Code,
			"error", err,
		)
	default:
		if apiErr := FromError(err); apiErr != nil {
			return apiErr
		}
		return NewBadRequestError("invalid upload request", err)
	}

	if h.ledger != nil {
		if lerr := h.ledger.RecordFault(ctx, fault); lerr != nil {
			logger.Error("failed to record fault", "error", lerr)
		}
	}
	return FromError(err)
}

// discard removes files already stored for a batch that is being aborted.
func (h *UploadHandlerImpl) discard(ctx context.Context, logger *slog.Logger, files []*models.FileInfo) {
	for _, info := range files {
		if err := h.store.Delete(ctx, info.ID); err != nil {
			logger.Warn("failed to discard stored file", "file_id", info.ID, "error", err)
		}
	}
}

// newRecord flattens an outcome into its ledger and response form.
func newRecord(batchID string, pos int, o upload.Outcome, limits upload.Limits, at time.Time) models.UploadRecord {
	rec := models.UploadRecord{
		BatchID:    batchID,
		Position:   pos,
		FieldName:  o.FieldName(),
		RecordedAt: at,
	}
	switch v := o.(type) {
	case *upload.File:
		rec.Outcome = models.OutcomeFile
		rec.Kind = upload.CodeOK.String()
		rec.Code = int(upload.CodeOK)
		rec.ClientFilename = v.ClientFilename()
		rec.ContentType = v.Type()
		rec.Size = v.Size()
	case *upload.Failure:
		rec.Outcome = models.OutcomeFailure
		rec.Kind = v.Kind().String()
		rec.Code = int(v.Code())
		rec.Size = v.Size()
		rec.Message = v.ErrorMessage()
		if n, ok := v.IsTooBig(limits); ok && n < math.MaxInt64 {
			rec.Limit = n
		}
	}
	return rec
}

// handlers_files.go - Stored file handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/customs-dev/customs/internal/storage"
	"github.com/labstack/echo/v4"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store storage.Store
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store) FileHandler {
	return &FileHandlerImpl{store: store}
}

// HandleListFiles returns the most recently stored files
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	files, err := h.store.List(c.Request().Context(), queryLimit(c, 20, 500))
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return respond(c, http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}

	info, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return storeError(id, err)
	}
	return respond(c, http.StatusOK, info)
}

// HandleGetFileContent streams the stored bytes. The client supplied name is
// only offered as the attachment name.
func (h *FileHandlerImpl) HandleGetFileContent(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}

	rc, info, err := h.store.Open(c.Request().Context(), id)
	if err != nil {
		return storeError(id, err)
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(info.Name))
	header.Set("X-Content-Type-Options", "nosniff")
	if info.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

// HandleDeleteFile deletes a stored file
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return storeError(id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(c.Request().Context(), id, req.Name)
	if err != nil {
		return storeError(id, err)
	}
	return respond(c, http.StatusOK, info)
}

type renameFileRequest struct {
	Name string `json:"name"`
}

func storeError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("file", id)
	}
	return NewInternalError("storage error", err)
}

// Package storage keeps uploads that passed normalization.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/customs-dev/customs/internal/models"
	"github.com/customs-dev/customs/internal/upload"
)

// ErrNotFound is returned for an unknown file id.
var ErrNotFound = errors.New("file not found")

// Store defines the interface for file storage.
type Store interface {
	// Adopt takes over the temporary file of a received upload.
	Adopt(ctx context.Context, f *upload.File) (*models.FileInfo, error)
	// Get, List and Rename return copies of the indexed metadata.
	Get(ctx context.Context, id string) (*models.FileInfo, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *models.FileInfo, error)
	List(ctx context.Context, limit int) ([]*models.FileInfo, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id string, newName string) (*models.FileInfo, error)
}

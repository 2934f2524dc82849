package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/customs-dev/customs/internal/models"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/google/uuid"
)

// BackendLocal names the filesystem backend in FileInfo.Backend.
const BackendLocal = "local"

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Adopt moves the temporary file of f into the upload directory.
func (s *LocalStore) Adopt(ctx context.Context, f *upload.File) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	if err := f.MoveTo(path); err != nil {
		return nil, err
	}

	info := &models.FileInfo{
		ID:          id,
		Name:        f.ClientFilename(),
		FieldName:   f.FieldName(),
		ContentType: f.Type(),
		Size:        f.Size(),
		UploadedAt:  time.Now(),
		Status:      models.FileStatusStored,
		Backend:     BackendLocal,
		Location:    path,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	cp := *info
	return &cp, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(ctx context.Context, id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	cp := *info
	return &cp, nil
}

// Open returns the content of a stored file.
func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, *models.FileInfo, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.uploadDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	return f, info, nil
}

// List returns the most recent files. A limit of zero or less returns all.
func (s *LocalStore) List(ctx context.Context, limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		cp := *info
		list = append(list, &cp)
	}

	// Sort by UploadedAt desc
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(ctx context.Context, id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info.Name = newName
	cp := *info
	return &cp, nil
}

var _ Store = (*LocalStore)(nil)

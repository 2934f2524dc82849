// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/customs-dev/customs/internal/models"
	"github.com/customs-dev/customs/internal/storage"
	"github.com/customs-dev/customs/internal/upload"
)

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	mu       sync.RWMutex

	// AdoptErr, when set, is returned by Adopt starting with the
	// AdoptFailAfter-th call (zero based).
	AdoptErr       error
	AdoptFailAfter int
	adopted        int
}

// NewMockStorage creates a new mock storage with default implementations
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
	}
}

// Adopt copies the temporary file into memory. The temporary file is left in
// place.
func (m *MockStorage) Adopt(ctx context.Context, f *upload.File) (*models.FileInfo, error) {
	m.mu.Lock()
	n := m.adopted
	m.adopted++
	m.mu.Unlock()

	if m.AdoptErr != nil && n >= m.AdoptFailAfter {
		return nil, &upload.ServerFault{FieldName: f.FieldName(), Reason: upload.ReasonMoveFailed, Err: m.AdoptErr}
	}

	data, err := os.ReadFile(f.ServerFile())
	if err != nil {
		return nil, &upload.ServerFault{FieldName: f.FieldName(), Reason: upload.ReasonMoveFailed, Err: err}
	}
	info := m.AddFile(generateTestID(), f.ClientFilename(), data)

	m.mu.Lock()
	defer m.mu.Unlock()
	info.FieldName = f.FieldName()
	info.ContentType = f.Type()
	cp := *info
	return &cp, nil
}

func (m *MockStorage) Get(ctx context.Context, id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cp := *file
	return &cp, nil
}

func (m *MockStorage) Open(ctx context.Context, id string) (io.ReadCloser, *models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cp := *file
	return io.NopCloser(bytes.NewReader(m.fileData[id])), &cp, nil
}

func (m *MockStorage) List(ctx context.Context, limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0, len(m.files))
	for _, file := range m.files {
		cp := *file
		files = append(files, &cp)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}

	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Rename(ctx context.Context, id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}

	file.Name = newName
	cp := *file
	return &cp, nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile adds a file directly to the mock. The returned pointer is the
// indexed entry, so tests can adjust its metadata.
func (m *MockStorage) AddFile(id string, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     models.FileStatusStored,
		Backend:    "mock",
		Location:   "mock://" + id,
	}
	m.files[id] = file
	m.fileData[id] = data
	return file
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Clear removes all files
func (m *MockStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*models.FileInfo)
	m.fileData = make(map[string][]byte)
	m.adopted = 0
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}

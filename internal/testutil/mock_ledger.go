package testutil

import (
	"context"
	"sync"

	"github.com/customs-dev/customs/internal/models"
)

// MockLedger keeps recorded batches in memory.
type MockLedger struct {
	mu      sync.Mutex
	Records []models.UploadRecord
	Faults  []models.FaultRecord

	// Err, when set, is returned by every method.
	Err error
}

// NewMockLedger creates an empty ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

func (m *MockLedger) Record(ctx context.Context, records []models.UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, records...)
	return nil
}

func (m *MockLedger) RecordFault(ctx context.Context, f models.FaultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Faults = append(m.Faults, f)
	return nil
}

// Recent returns records newest first.
func (m *MockLedger) Recent(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.UploadRecord, 0, len(m.Records))
	for i := len(m.Records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.Records[i])
	}
	return out, nil
}

func (m *MockLedger) RecentFaults(ctx context.Context, limit int) ([]models.FaultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.FaultRecord, 0, len(m.Faults))
	for i := len(m.Faults) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.Faults[i])
	}
	return out, nil
}

func (m *MockLedger) Stats(ctx context.Context) (*models.LedgerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	stats := &models.LedgerStats{ByKind: make(map[string]int64), Faults: int64(len(m.Faults))}
	batches := make(map[string]struct{})
	for _, r := range m.Records {
		batches[r.BatchID] = struct{}{}
		stats.Outcomes++
		stats.ByKind[r.Kind]++
		if r.Outcome == models.OutcomeFile {
			stats.Files++
			stats.Bytes += r.Size
		}
	}
	stats.Batches = int64(len(batches))
	return stats, nil
}

func (m *MockLedger) Ping(ctx context.Context) error {
	return m.Err
}

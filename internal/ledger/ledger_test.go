package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/customs-dev/customs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.duckdb")
	l, err := Open(path, Options{Threads: 1, MemoryLimit: "256MB"})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func batch(id string, at time.Time) []models.UploadRecord {
	return []models.UploadRecord{
		{BatchID: id, Position: 0, FieldName: "docs[0]", Outcome: models.OutcomeFile, Kind: "ok",
			ClientFilename: "a.pdf", ContentType: "application/pdf", Size: 100, FileID: id + "-a", RecordedAt: at},
		{BatchID: id, Position: 1, FieldName: "docs[1]", Outcome: models.OutcomeFailure, Kind: "oversize_server", Code: 1,
			Message: "The uploaded file exceeds the server size limit", RecordedAt: at},
		{BatchID: id, Position: 2, FieldName: "avatar", Outcome: models.OutcomeFile, Kind: "ok",
			ClientFilename: "me.png", ContentType: "image/png", Size: 50, FileID: id + "-b", RecordedAt: at},
	}
}

func TestOpen_InvalidMemoryLimit(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.duckdb"), Options{MemoryLimit: "1GB'; DROP"})
	assert.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, l.Record(ctx, batch("b1", now.Add(-time.Minute))))
	require.NoError(t, l.Record(ctx, batch("b2", now)))
	require.NoError(t, l.Record(ctx, nil))

	recent, err := l.Recent(ctx, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)

	// Newest batch first, batch order preserved inside it.
	assert.Equal(t, "b2", recent[0].BatchID)
	assert.Equal(t, []int{0, 1, 2}, []int{recent[0].Position, recent[1].Position, recent[2].Position})
	assert.Equal(t, "b1", recent[3].BatchID)

	assert.Equal(t, "docs[1]", recent[1].FieldName)
	assert.Equal(t, 1, recent[1].Code)
	assert.Equal(t, "oversize_server", recent[1].Kind)
	assert.Equal(t, int64(50), recent[2].Size)
	assert.WithinDuration(t, now, recent[0].RecordedAt, time.Second)
}

func TestRecentFaults(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)

	require.NoError(t, l.RecordFault(ctx, models.FaultRecord{
		BatchID:   "b9",
		Fault:     "security",
		FieldName: "userfile",
		Code:      0,
		Message:   "the upload was rejected",
		Reason:    "not_uploaded",
		RemoteIP:  "203.0.113.7",
		RequestID: "req-1",
	}))

	faults, err := l.RecentFaults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, faults, 1)
	assert.Equal(t, "security", faults[0].Fault)
	assert.Equal(t, "userfile", faults[0].FieldName)
	assert.Equal(t, "203.0.113.7", faults[0].RemoteIP)
	assert.Equal(t, "not_uploaded", faults[0].Reason)
	assert.False(t, faults[0].RecordedAt.IsZero())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)

	empty, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Batches)
	assert.Zero(t, empty.Bytes)
	assert.Empty(t, empty.ByKind)

	now := time.Now()
	require.NoError(t, l.Record(ctx, batch("b1", now)))
	require.NoError(t, l.Record(ctx, batch("b2", now)))
	require.NoError(t, l.RecordFault(ctx, models.FaultRecord{BatchID: "b3", Fault: "server", FieldName: "f"}))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Batches)
	assert.Equal(t, int64(6), stats.Outcomes)
	assert.Equal(t, int64(4), stats.Files)
	assert.Equal(t, int64(300), stats.Bytes)
	assert.Equal(t, int64(1), stats.Faults)
	assert.Equal(t, map[string]int64{"ok": 4, "oversize_server": 2}, stats.ByKind)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.duckdb")

	l, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, batch("b1", time.Now())))
	require.NoError(t, l.Close())

	l, err = Open(path, Options{})
	require.NoError(t, err)
	defer l.Close()

	recent, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.NoError(t, l.Ping(ctx))
}

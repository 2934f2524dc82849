// Package ledger keeps an append-only DuckDB record of normalized upload
// batches and of the batches aborted by faults.
package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/customs-dev/customs/internal/models"
	"github.com/marcboeker/go-duckdb"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	batch_id        VARCHAR NOT NULL,
	position        INTEGER NOT NULL,
	field_name      VARCHAR NOT NULL,
	outcome         VARCHAR NOT NULL,
	kind            VARCHAR NOT NULL,
	code            INTEGER NOT NULL,
	client_filename VARCHAR NOT NULL,
	content_type    VARCHAR NOT NULL,
	size            BIGINT NOT NULL,
	file_id         VARCHAR NOT NULL,
	message         VARCHAR NOT NULL,
	recorded_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS faults (
	batch_id    VARCHAR NOT NULL,
	fault       VARCHAR NOT NULL,
	field_name  VARCHAR NOT NULL,
	code        INTEGER NOT NULL,
	message     VARCHAR NOT NULL,
	reason      VARCHAR NOT NULL DEFAULT '',
	remote_ip   VARCHAR NOT NULL,
	request_id  VARCHAR NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
`

// Options tunes the DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string
	Logger      *slog.Logger
}

// Ledger is a DuckDB-backed outcome log.
type Ledger struct {
	db   *sql.DB
	path string
	log  *slog.Logger

	// Appender writes go through one connection at a time.
	mu sync.Mutex
}

// Open opens or creates the ledger database at path. An empty path keeps
// the ledger in memory.
func Open(path string, opts Options) (*Ledger, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if strings.ContainsAny(opts.MemoryLimit, "'\\") {
		return nil, fmt.Errorf("invalid memory limit %q", opts.MemoryLimit)
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	log.Debug("ledger opened", "path", path, "threads", opts.Threads, "memory_limit", opts.MemoryLimit)
	return &Ledger{db: db, path: path, log: log}, nil
}

// Record appends the outcomes of one batch.
func (l *Ledger) Record(ctx context.Context, records []models.UploadRecord) error {
	if len(records) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return errors.New("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "outcomes")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, r := range records {
			recordedAt := r.RecordedAt
			if recordedAt.IsZero() {
				recordedAt = time.Now()
			}
			err := appender.AppendRow(
				r.BatchID,
				int32(r.Position),
				r.FieldName,
				r.Outcome,
				r.Kind,
				int32(r.Code),
				r.ClientFilename,
				r.ContentType,
				r.Size,
				r.FileID,
				r.Message,
				recordedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// RecordFault stores a batch aborted by a fault.
func (l *Ledger) RecordFault(ctx context.Context, f models.FaultRecord) error {
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO faults (batch_id, fault, field_name, code, message, reason, remote_ip, request_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.BatchID, f.Fault, f.FieldName, f.Code, f.Message, f.Reason, f.RemoteIP, f.RequestID, f.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record fault: %w", err)
	}
	return nil
}

// Recent returns the latest outcomes, newest batch first and in batch order
// within a batch.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT batch_id, position, field_name, outcome, kind, code,
		       client_filename, content_type, size, file_id, message, recorded_at
		FROM outcomes
		ORDER BY recorded_at DESC, batch_id, position
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	records := make([]models.UploadRecord, 0, limit)
	for rows.Next() {
		var r models.UploadRecord
		var position, code int32
		if err := rows.Scan(&r.BatchID, &position, &r.FieldName, &r.Outcome, &r.Kind, &code,
			&r.ClientFilename, &r.ContentType, &r.Size, &r.FileID, &r.Message, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		r.Position = int(position)
		r.Code = int(code)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentFaults returns the latest aborted batches.
func (l *Ledger) RecentFaults(ctx context.Context, limit int) ([]models.FaultRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT batch_id, fault, field_name, code, message, reason, remote_ip, request_id, recorded_at
		FROM faults
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query faults: %w", err)
	}
	defer rows.Close()

	var faults []models.FaultRecord
	for rows.Next() {
		var f models.FaultRecord
		var code int32
		if err := rows.Scan(&f.BatchID, &f.Fault, &f.FieldName, &code, &f.Message, &f.Reason, &f.RemoteIP, &f.RequestID, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fault: %w", err)
		}
		f.Code = int(code)
		faults = append(faults, f)
	}
	return faults, rows.Err()
}

// Stats aggregates everything recorded so far.
func (l *Ledger) Stats(ctx context.Context) (*models.LedgerStats, error) {
	stats := &models.LedgerStats{ByKind: make(map[string]int64)}

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT batch_id),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = 'file'),
		       CAST(COALESCE(SUM(size) FILTER (WHERE outcome = 'file'), 0) AS BIGINT)
		FROM outcomes`).Scan(&stats.Batches, &stats.Outcomes, &stats.Files, &stats.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults`).Scan(&stats.Faults); err != nil {
		return nil, fmt.Errorf("failed to count faults: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM outcomes GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query kinds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan kind: %w", err)
		}
		stats.ByKind[kind] = n
	}
	return stats, rows.Err()
}

// Ping checks the database connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database. The file is kept.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

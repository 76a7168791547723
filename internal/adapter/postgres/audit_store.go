package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlward/sqlward/internal/core/port"
)

// Schema is the append-only audit table. There are no updates or deletes by
// design; the table only ever grows.
const Schema = `
CREATE TABLE IF NOT EXISTS query_audit_log (
	id               UUID PRIMARY KEY,
	user_id          TEXT,
	user_email       TEXT,
	user_name        TEXT,
	original_sql     TEXT NOT NULL,
	sanitized_sql    TEXT,
	fingerprint      TEXT NOT NULL,
	status           TEXT NOT NULL,
	error_code       INTEGER,
	error_category   TEXT,
	error_message    TEXT,
	rows_returned    INTEGER,
	column_count     INTEGER,
	result_bytes     BIGINT,
	elapsed_seconds  DOUBLE PRECISION,
	rows_read        BIGINT,
	bytes_read       BIGINT,
	max_rows_limit   INTEGER NOT NULL,
	timeout_seconds  INTEGER NOT NULL,
	client_ip        TEXT,
	user_agent       TEXT,
	session_id       TEXT,
	executed_at      TIMESTAMPTZ NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO query_audit_log (
	id, user_id, user_email, user_name,
	original_sql, sanitized_sql, fingerprint, status,
	error_code, error_category, error_message,
	rows_returned, column_count, result_bytes,
	elapsed_seconds, rows_read, bytes_read,
	max_rows_limit, timeout_seconds,
	client_ip, user_agent, session_id,
	executed_at, recorded_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
)`

const (
	defaultBatchSize     = 32
	defaultFlushInterval = 2 * time.Second
	defaultBufferSize    = 256
	flushTimeout         = 10 * time.Second
)

// ErrBufferFull is returned when the writer's queue is saturated; the record
// is dropped rather than blocking the caller.
var ErrBufferFull = errors.New("audit buffer full")

var errClosed = errors.New("audit store closed")

// AuditStore buffers records on a channel and writes them to query_audit_log
// in batches from a background goroutine. A batch goes out when it reaches
// the batch size, when the flush interval elapses, and on Close.
type AuditStore struct {
	pool    *pgxpool.Pool
	entries chan port.AuditRecord

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewAuditStore ensures the audit table exists and starts the batch writer.
func NewAuditStore(ctx context.Context, pool *pgxpool.Pool) (*AuditStore, error) {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("ensuring audit table: %w", err)
	}
	s := &AuditStore{
		pool:    pool,
		entries: make(chan port.AuditRecord, defaultBufferSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Insert enqueues the record without blocking. It never waits on the
// database; a saturated buffer drops the record with ErrBufferFull.
func (s *AuditStore) Insert(_ context.Context, rec port.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	select {
	case s.entries <- rec:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting records, flushes the remaining buffer, and closes
// the pool.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	<-s.done
	s.pool.Close()
	return nil
}

func (s *AuditStore) run() {
	defer close(s.done)

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	pending := make([]port.AuditRecord, 0, defaultBatchSize)
	for {
		select {
		case rec, ok := <-s.entries:
			if !ok {
				s.flush(pending)
				return
			}
			pending = append(pending, rec)
			if len(pending) >= defaultBatchSize {
				s.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				s.flush(pending)
				pending = pending[:0]
			}
		}
	}
}

// flush writes one pipelined batch. Errors are deliberately not propagated;
// the audit trail is best-effort at this layer and the recorder has already
// released the caller.
func (s *AuditStore) flush(records []port.AuditRecord) {
	if len(records) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertSQL,
			rec.ID,
			nilIfEmpty(rec.UserID),
			nilIfEmpty(rec.UserEmail),
			nilIfEmpty(rec.UserName),
			rec.OriginalSQL,
			nilIfEmpty(rec.SanitizedSQL),
			rec.Fingerprint,
			string(rec.Status),
			rec.ErrorCode,
			nilIfEmpty(rec.ErrorCategory),
			nilIfEmpty(rec.ErrorMessage),
			rec.RowsReturned,
			rec.ColumnCount,
			rec.ResultBytes,
			rec.ElapsedSeconds,
			intPtr(rec.RowsRead),
			intPtr(rec.BytesRead),
			rec.MaxRowsLimit,
			rec.TimeoutSeconds,
			nilIfEmpty(rec.ClientIP),
			nilIfEmpty(rec.UserAgent),
			nilIfEmpty(rec.SessionID),
			rec.ExecutedAt,
			rec.RecordedAt,
		)
	}
	_ = s.pool.SendBatch(ctx, batch).Close()
}

// nilIfEmpty maps "" to SQL NULL so absent fields are stored explicitly.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// intPtr converts an optional uint64 counter to a signed type pgx can bind to
// BIGINT.
func intPtr(p *uint64) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

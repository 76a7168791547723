package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sqlward/sqlward/internal/core/port"
)

// fileRecord is the NDJSON-serializable form of an audit record.
type fileRecord struct {
	ID             string   `json:"id"`
	RecordedAt     string   `json:"recorded_at"`
	ExecutedAt     string   `json:"executed_at"`
	UserID         string   `json:"user_id,omitempty"`
	UserEmail      string   `json:"user_email,omitempty"`
	UserName       string   `json:"user_name,omitempty"`
	OriginalSQL    string   `json:"original_sql"`
	SanitizedSQL   string   `json:"sanitized_sql,omitempty"`
	Fingerprint    string   `json:"fingerprint"`
	Status         string   `json:"status"`
	ErrorCode      *int     `json:"error_code,omitempty"`
	ErrorCategory  string   `json:"error_category,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	RowsReturned   *int     `json:"rows_returned,omitempty"`
	ColumnCount    *int     `json:"column_count,omitempty"`
	ResultBytes    *int64   `json:"result_bytes,omitempty"`
	ElapsedSeconds *float64 `json:"elapsed_seconds,omitempty"`
	RowsRead       *uint64  `json:"rows_read,omitempty"`
	BytesRead      *uint64  `json:"bytes_read,omitempty"`
	MaxRowsLimit   int      `json:"max_rows_limit"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	ClientIP       string   `json:"client_ip,omitempty"`
	UserAgent      string   `json:"user_agent,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
}

// FileStore appends audit records as NDJSON (one JSON object per line) to a
// local file. Useful for single-node deployments and as a fallback sink when
// no audit database is configured.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileStore opens (or creates) the file at path for append-only writing.
func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileStore{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileStore) Insert(_ context.Context, rec port.AuditRecord) error {
	fr := fileRecord{
		ID:             rec.ID.String(),
		RecordedAt:     rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		ExecutedAt:     rec.ExecutedAt.UTC().Format(time.RFC3339Nano),
		UserID:         rec.UserID,
		UserEmail:      rec.UserEmail,
		UserName:       rec.UserName,
		OriginalSQL:    rec.OriginalSQL,
		SanitizedSQL:   rec.SanitizedSQL,
		Fingerprint:    rec.Fingerprint,
		Status:         string(rec.Status),
		ErrorCode:      rec.ErrorCode,
		ErrorCategory:  rec.ErrorCategory,
		ErrorMessage:   rec.ErrorMessage,
		RowsReturned:   rec.RowsReturned,
		ColumnCount:    rec.ColumnCount,
		ResultBytes:    rec.ResultBytes,
		ElapsedSeconds: rec.ElapsedSeconds,
		RowsRead:       rec.RowsRead,
		BytesRead:      rec.BytesRead,
		MaxRowsLimit:   rec.MaxRowsLimit,
		TimeoutSeconds: rec.TimeoutSeconds,
		ClientIP:       rec.ClientIP,
		UserAgent:      rec.UserAgent,
		SessionID:      rec.SessionID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(fr)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

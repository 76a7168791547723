package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actor identifies who submitted a query. It exists for audit attribution
// only and carries no authorization weight.
type Actor struct {
	UserID    string
	UserEmail string
	UserName  string
	SessionID string
	ClientIP  string
	UserAgent string
}

// AuditStatus is the terminal status of one execution attempt.
type AuditStatus string

const (
	AuditSuccess   AuditStatus = "success"
	AuditFailure   AuditStatus = "failure"
	AuditTimeout   AuditStatus = "timeout"
	AuditCancelled AuditStatus = "cancelled"
)

// AuditRecord is one immutable entry in the execution audit trail. It is
// constructed exactly once per attempt, immediately after the attempt
// concludes, and never mutated afterwards.
//
// Pointer fields distinguish "not measured on this outcome path" from zero:
// a rejected query, for example, carries no execution statistics. String
// fields use "" for absent; stores render absent fields as an explicit NULL.
type AuditRecord struct {
	ID uuid.UUID

	// Actor attribution.
	UserID    string
	UserEmail string
	UserName  string

	OriginalSQL  string
	SanitizedSQL string
	Fingerprint  string

	Status        AuditStatus
	ErrorCode     *int
	ErrorCategory string
	ErrorMessage  string

	// Result shape.
	RowsReturned *int
	ColumnCount  *int
	ResultBytes  *int64

	// Server-reported execution statistics.
	ElapsedSeconds *float64
	RowsRead       *uint64
	BytesRead      *uint64

	// Limits in force for this attempt.
	MaxRowsLimit   int
	TimeoutSeconds int

	// Request metadata.
	ClientIP  string
	UserAgent string
	SessionID string

	ExecutedAt time.Time
	RecordedAt time.Time
}

// AuditStore persists audit records into an append-only store. Insert is one
// write per record; durability is best-effort and retry policy is the
// caller's concern (today: none).
type AuditStore interface {
	Insert(ctx context.Context, rec AuditRecord) error
	Close() error
}

// NoopStore discards all audit records.
type NoopStore struct{}

func (NoopStore) Insert(context.Context, AuditRecord) error { return nil }
func (NoopStore) Close() error                              { return nil }

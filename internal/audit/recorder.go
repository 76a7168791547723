// Package audit builds and persists execution audit records.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
)

// DefaultTimeout bounds a single audit write. It is deliberately independent
// of, and much shorter than, the query execution timeout.
const DefaultTimeout = 5 * time.Second

// Attempt carries everything the recorder needs about one concluded
// execution attempt. Outcome is nil when the query was rejected before
// running or cancelled before dispatch.
type Attempt struct {
	Actor       port.Actor
	OriginalSQL string
	Validation  domain.ValidationOutcome
	Outcome     *domain.ExecutionOutcome
	Cancelled   bool
	Limits      port.Limits
	ExecutedAt  time.Time
}

// Recorder turns attempts into immutable audit records and persists them on a
// detached goroutine. Persistence failures are logged and swallowed: the
// audit trail is best-effort and must never block or fail the user's query
// workflow.
type Recorder struct {
	store   port.AuditStore
	logger  *slog.Logger
	timeout time.Duration
	inst    port.Instrumentation
	wg      sync.WaitGroup
}

func NewRecorder(store port.AuditStore, logger *slog.Logger, timeout time.Duration, inst port.Instrumentation) *Recorder {
	if store == nil {
		store = port.NoopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &Recorder{store: store, logger: logger, timeout: timeout, inst: inst}
}

// Record builds the record for attempt and hands it to the store without
// waiting for the write. The write runs under the recorder's own timeout on a
// fresh context, so a cancelled request context cannot abort it.
func (r *Recorder) Record(attempt Attempt) {
	rec := r.build(attempt)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.Insert(ctx, rec); err != nil {
			// At-most-once by design: losing a record beats adding
			// user-facing latency.
			r.logger.Warn("audit record dropped",
				slog.String("fingerprint", rec.Fingerprint),
				slog.String("status", string(rec.Status)),
				slog.String("error", err.Error()),
			)
			r.inst.IncrementAuditDropped(ctx)
		}
	}()
}

// Wait blocks until all in-flight audit writes have finished. Intended for
// shutdown and tests only; the request path never calls it.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) build(a Attempt) port.AuditRecord {
	rec := port.AuditRecord{
		ID:             uuid.New(),
		UserID:         a.Actor.UserID,
		UserEmail:      a.Actor.UserEmail,
		UserName:       a.Actor.UserName,
		OriginalSQL:    a.OriginalSQL,
		SanitizedSQL:   a.Validation.SanitizedSQL,
		Fingerprint:    domain.Fingerprint(a.OriginalSQL),
		MaxRowsLimit:   a.Limits.MaxRows,
		TimeoutSeconds: int(a.Limits.Timeout.Seconds()),
		ClientIP:       a.Actor.ClientIP,
		UserAgent:      a.Actor.UserAgent,
		SessionID:      a.Actor.SessionID,
		ExecutedAt:     a.ExecutedAt,
		RecordedAt:     time.Now().UTC(),
	}

	switch {
	case !a.Validation.Accepted:
		rec.Status = port.AuditFailure
		rec.ErrorMessage = a.Validation.RejectionReason
	case a.Cancelled:
		rec.Status = port.AuditCancelled
	case a.Outcome == nil:
		// Accepted but never dispatched; treat as failure so the record
		// is not silently counted as a success.
		rec.Status = port.AuditFailure
		rec.ErrorMessage = "query was not dispatched"
	case a.Outcome.Succeeded():
		rec.Status = port.AuditSuccess
		res := a.Outcome.Result
		rows := res.RowCount
		cols := len(res.Columns)
		size := estimateResultBytes(res)
		rec.RowsReturned = &rows
		rec.ColumnCount = &cols
		rec.ResultBytes = &size
		if res.Stats != nil {
			elapsed := res.Stats.ElapsedSeconds
			rowsRead := res.Stats.RowsRead
			bytesRead := res.Stats.BytesRead
			rec.ElapsedSeconds = &elapsed
			rec.RowsRead = &rowsRead
			rec.BytesRead = &bytesRead
		}
	default:
		if a.Outcome.Kind == domain.OutcomeTimeout {
			rec.Status = port.AuditTimeout
		} else {
			rec.Status = port.AuditFailure
		}
		ce := domain.Classify(a.Outcome.RawMessage)
		rec.ErrorCode = ce.Code
		rec.ErrorCategory = ce.Category
		rec.ErrorMessage = ce.Message
	}

	return rec
}

// estimateResultBytes is a coarse client-side size estimate of the rendered
// result, used only as an audit metric.
func estimateResultBytes(res *domain.QueryResult) int64 {
	var n int64
	for _, row := range res.Rows {
		for k, v := range row {
			n += int64(len(k)) + int64(len(fmt.Sprintf("%v", v)))
		}
	}
	return n
}

package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStore struct {
	mu   sync.Mutex
	recs []port.AuditRecord
	err  error
}

func (s *stubStore) Insert(_ context.Context, rec port.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) records() []port.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]port.AuditRecord(nil), s.recs...)
}

func acceptedAttempt(outcome *domain.ExecutionOutcome) Attempt {
	return Attempt{
		Actor:       port.Actor{UserID: "u1", UserEmail: "u1@example.com", SessionID: "s1"},
		OriginalSQL: "SELECT 1",
		Validation:  domain.ValidationOutcome{Accepted: true, SanitizedSQL: "SELECT 1"},
		Outcome:     outcome,
		Limits:      port.Limits{MaxRows: 100, Timeout: 30 * time.Second},
		ExecutedAt:  time.Now().UTC(),
	}
}

func TestRecorder_SuccessRecord(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	outcome := domain.SuccessOutcome(&domain.QueryResult{
		Columns:  []domain.Column{{Name: "a", Type: "String"}, {Name: "b", Type: "UInt64"}},
		Rows:     []map[string]any{{"a": "x", "b": float64(7)}},
		RowCount: 1,
		Stats:    &domain.ExecutionStatistics{ElapsedSeconds: 1.5, RowsRead: 10, BytesRead: 80},
	})
	rec.Record(acceptedAttempt(&outcome))
	rec.Wait()

	recs := store.records()
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, port.AuditSuccess, r.Status)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", r.ID.String())
	assert.Equal(t, domain.Fingerprint("SELECT 1"), r.Fingerprint)
	require.NotNil(t, r.ColumnCount)
	assert.Equal(t, 2, *r.ColumnCount)
	require.NotNil(t, r.RowsRead)
	assert.Equal(t, uint64(10), *r.RowsRead)
	require.NotNil(t, r.ResultBytes)
	assert.Positive(t, *r.ResultBytes)
	assert.False(t, r.RecordedAt.IsZero())
}

func TestRecorder_RejectionHasNoMetrics(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	rec.Record(Attempt{
		OriginalSQL: "DROP TABLE t",
		Validation:  domain.ValidationOutcome{RejectionReason: "only SELECT statements are allowed"},
		Limits:      port.Limits{MaxRows: 100, Timeout: 30 * time.Second},
		ExecutedAt:  time.Now().UTC(),
	})
	rec.Wait()

	recs := store.records()
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, port.AuditFailure, r.Status)
	assert.Equal(t, "only SELECT statements are allowed", r.ErrorMessage)
	assert.Nil(t, r.RowsReturned)
	assert.Nil(t, r.ColumnCount)
	assert.Nil(t, r.ElapsedSeconds)
	assert.Nil(t, r.RowsRead)
	assert.Nil(t, r.BytesRead)
	assert.Nil(t, r.ErrorCode)
	assert.Empty(t, r.SanitizedSQL)
}

func TestRecorder_FailureClassified(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	outcome := domain.FailureOutcome("Code: 241. DB::Exception: Memory limit exceeded")
	rec.Record(acceptedAttempt(&outcome))
	rec.Wait()

	recs := store.records()
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, port.AuditFailure, r.Status)
	require.NotNil(t, r.ErrorCode)
	assert.Equal(t, 241, *r.ErrorCode)
	assert.Equal(t, "Memory limit exceeded", r.ErrorCategory)
	assert.Equal(t, "Code: 241. DB::Exception: Memory limit exceeded", r.ErrorMessage)
}

func TestRecorder_TimeoutStatus(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	outcome := domain.FailureOutcome("Timeout exceeded: max_execution_time")
	rec.Record(acceptedAttempt(&outcome))
	rec.Wait()

	recs := store.records()
	require.Len(t, recs, 1)
	assert.Equal(t, port.AuditTimeout, recs[0].Status)
}

func TestRecorder_CancelledStatus(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	a := acceptedAttempt(nil)
	a.Cancelled = true
	rec.Record(a)
	rec.Wait()

	recs := store.records()
	require.Len(t, recs, 1)
	assert.Equal(t, port.AuditCancelled, recs[0].Status)
}

func TestRecorder_SwallowsStoreErrors(t *testing.T) {
	t.Parallel()
	store := &stubStore{err: errors.New("insert failed")}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	outcome := domain.SuccessOutcome(&domain.QueryResult{RowCount: 0})
	assert.NotPanics(t, func() {
		rec.Record(acceptedAttempt(&outcome))
		rec.Wait()
	})
}

func TestRecorder_RecordDoesNotBlockOnSlowStore(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	store := &blockingStore{release: block}
	rec := NewRecorder(store, testLogger(), time.Second, nil)

	outcome := domain.SuccessOutcome(&domain.QueryResult{})
	done := make(chan struct{})
	go func() {
		rec.Record(acceptedAttempt(&outcome))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Record blocked on a slow audit store")
	}
	close(block)
	rec.Wait()
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Insert(ctx context.Context, _ port.AuditRecord) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func (s *blockingStore) Close() error { return nil }

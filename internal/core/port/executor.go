package port

import (
	"context"
	"time"

	"github.com/sqlward/sqlward/internal/core/domain"
)

// Limits are the resource bounds for one execution attempt. MaxRows is a
// declared ceiling communicated to the database layer, not a client-side
// truncation; Timeout bounds the whole round trip.
type Limits struct {
	MaxRows int
	Timeout time.Duration
}

// QueryExecutor sends a sanitized query to the database's query endpoint.
// Implementations never inspect or re-validate the text: the validator is the
// sole admission gate. A failed or timed-out query is reported once, with no
// retries.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string, limits Limits) domain.ExecutionOutcome
}

package service

import (
	"fmt"

	"github.com/sqlward/sqlward/internal/core/domain"
)

// ValidationError reports a pre-execution rejection. The database was never
// contacted; Reason names the rule that fired.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ExecutionError reports a query the database rejected or failed to run.
// Classified carries the structured form of the raw message; Timeout marks
// the textual timeout refinement.
type ExecutionError struct {
	Classified domain.ClassifiedError
	Timeout    bool
}

func (e *ExecutionError) Error() string {
	if e.Classified.Code != nil {
		return fmt.Sprintf("execution failed (code %d): %s", *e.Classified.Code, e.Classified.Message)
	}
	return "execution failed: " + e.Classified.Message
}

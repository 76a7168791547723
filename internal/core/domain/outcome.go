package domain

import "strings"

// Column describes one column of a query result, in declared order.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExecutionStatistics are the server-reported counters for a completed
// execution. They are present only when the endpoint returned them.
type ExecutionStatistics struct {
	ElapsedSeconds float64 `json:"elapsed"`
	RowsRead       uint64  `json:"rows_read"`
	BytesRead      uint64  `json:"bytes_read"`
}

// QueryResult is the typed form of a successful tabular response.
type QueryResult struct {
	Columns  []Column             `json:"columns"`
	Rows     []map[string]any     `json:"rows"`
	RowCount int                  `json:"row_count"`
	Stats    *ExecutionStatistics `json:"statistics,omitempty"`
}

// OutcomeKind tags an ExecutionOutcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// ExecutionOutcome is the tagged result of one execution attempt. Result is
// set iff Kind is OutcomeSuccess; RawMessage is set otherwise and carries the
// endpoint's error text verbatim.
type ExecutionOutcome struct {
	Kind       OutcomeKind
	Result     *QueryResult
	RawMessage string
}

// Succeeded reports whether the outcome carries a result.
func (o ExecutionOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// SuccessOutcome wraps a query result.
func SuccessOutcome(r *QueryResult) ExecutionOutcome {
	return ExecutionOutcome{Kind: OutcomeSuccess, Result: r}
}

// FailureOutcome wraps a raw failure message, refining it to a timeout when
// the text matches the timeout heuristic. There is no distinct wire signal
// for timeouts; this classification is textual.
func FailureOutcome(raw string) ExecutionOutcome {
	kind := OutcomeFailure
	if IsTimeoutMessage(raw) {
		kind = OutcomeTimeout
	}
	return ExecutionOutcome{Kind: kind, RawMessage: raw}
}

// IsTimeoutMessage reports whether a raw failure message indicates the query
// ran past its execution time limit.
func IsTimeoutMessage(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "max_execution_time")
}

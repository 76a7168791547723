// Package clickhouse talks to the columnar database over its HTTP interface:
// one POST per query with the SQL as the request body.
package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
)

// responseBodyLimit caps how much of a response we are willing to buffer.
const responseBodyLimit = 512 << 20

// Executor sends sanitized queries to the query endpoint. It trusts the
// validator's output completely and performs no retries: one attempt, one
// outcome.
type Executor struct {
	endpoint string
	user     string
	password string
	client   *http.Client
}

// NewExecutor builds an executor for the given endpoint URL. Credentials may
// be embedded in the URL userinfo; they are moved into auth headers.
func NewExecutor(endpoint string, client *http.Client) (*Executor, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	e := &Executor{client: client}
	if u.User != nil {
		e.user = u.User.Username()
		e.password, _ = u.User.Password()
		u.User = nil
	}
	e.endpoint = u.String()
	if e.client == nil {
		e.client = &http.Client{}
	}
	return e, nil
}

// Execute posts sql to the endpoint under the given limits. The row ceiling
// and execution timeout are communicated to the server as settings; the same
// timeout also bounds the client-side round trip.
func (e *Executor) Execute(ctx context.Context, sql string, limits port.Limits) domain.ExecutionOutcome {
	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	reqURL, err := e.buildURL(limits)
	if err != nil {
		return domain.FailureOutcome(fmt.Sprintf("building request URL: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(formatBody(sql)))
	if err != nil {
		return domain.FailureOutcome(fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if e.user != "" {
		req.Header.Set("X-ClickHouse-User", e.user)
		req.Header.Set("X-ClickHouse-Key", e.password)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.FailureOutcome(fmt.Sprintf("timeout after %s: %v", limits.Timeout, err))
		}
		return domain.FailureOutcome(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.FailureOutcome(fmt.Sprintf("timeout after %s: %v", limits.Timeout, err))
		}
		return domain.FailureOutcome(fmt.Sprintf("reading response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		// The error body text is the raw message fed to the classifier.
		return domain.FailureOutcome(strings.TrimSpace(string(raw)))
	}

	result, err := decodeResult(raw)
	if err != nil {
		return domain.FailureOutcome(fmt.Sprintf("decoding response: %v", err))
	}
	return domain.SuccessOutcome(result)
}

// formatBody prepares the request body. The validator tolerates a single
// trailing semicolon, but the server reads anything after it as a second
// statement, so it is stripped before the format clause goes on. The clause
// is only skipped when the query already ends with exactly FORMAT JSON.
func formatBody(sql string) string {
	body := strings.TrimSpace(sql)
	body = strings.TrimRight(strings.TrimSuffix(body, ";"), " \t\r\n")
	if !strings.HasSuffix(strings.ToUpper(body), "FORMAT JSON") {
		body += "\nFORMAT JSON"
	}
	return body
}

func (e *Executor) buildURL(limits port.Limits) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}
	// max_execution_time is whole seconds; a sub-second timeout must not
	// truncate to 0, which the server reads as unlimited.
	secs := int((limits.Timeout + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	q := u.Query()
	q.Set("max_result_rows", strconv.Itoa(limits.MaxRows))
	q.Set("max_execution_time", strconv.Itoa(secs))
	q.Set("result_overflow_mode", "break")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// jsonResponse mirrors the endpoint's tabular JSON payload.
type jsonResponse struct {
	Meta []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"meta"`
	Data       []map[string]any `json:"data"`
	Rows       int              `json:"rows"`
	Statistics *struct {
		Elapsed   float64 `json:"elapsed"`
		RowsRead  uint64  `json:"rows_read"`
		BytesRead uint64  `json:"bytes_read"`
	} `json:"statistics"`
}

func decodeResult(raw []byte) (*domain.QueryResult, error) {
	var jr jsonResponse
	if err := json.Unmarshal(raw, &jr); err != nil {
		return nil, err
	}

	cols := make([]domain.Column, len(jr.Meta))
	seen := make(map[string]struct{}, len(jr.Meta))
	for i, m := range jr.Meta {
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q in response metadata", m.Name)
		}
		seen[m.Name] = struct{}{}
		cols[i] = domain.Column{Name: m.Name, Type: m.Type}
	}

	rowCount := jr.Rows
	if rowCount == 0 {
		rowCount = len(jr.Data)
	}

	result := &domain.QueryResult{
		Columns:  cols,
		Rows:     jr.Data,
		RowCount: rowCount,
	}
	if jr.Statistics != nil {
		result.Stats = &domain.ExecutionStatistics{
			ElapsedSeconds: jr.Statistics.Elapsed,
			RowsRead:       jr.Statistics.RowsRead,
			BytesRead:      jr.Statistics.BytesRead,
		}
	}
	return result, nil
}

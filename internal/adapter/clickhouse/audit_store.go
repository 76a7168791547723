package clickhouse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sqlward/sqlward/internal/core/port"
)

// auditColumns is the column order used by every audit insert.
var auditColumns = []string{
	"id", "user_id", "user_email", "user_name",
	"original_sql", "sanitized_sql", "fingerprint", "status",
	"error_code", "error_category", "error_message",
	"rows_returned", "column_count", "result_bytes",
	"elapsed_seconds", "rows_read", "bytes_read",
	"max_rows_limit", "timeout_seconds",
	"client_ip", "user_agent", "session_id",
	"executed_at", "recorded_at",
}

// AuditStore appends audit records to a table on the columnar database via
// its HTTP interface, one INSERT per record.
type AuditStore struct {
	endpoint string
	table    string
	user     string
	password string
	client   *http.Client
}

func NewAuditStore(endpoint, table string, client *http.Client) (*AuditStore, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing audit store URL: %w", err)
	}
	s := &AuditStore{table: table, client: client}
	if u.User != nil {
		s.user = u.User.Username()
		s.password, _ = u.User.Password()
		u.User = nil
	}
	s.endpoint = u.String()
	if s.table == "" {
		s.table = "query_audit_log"
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	return s, nil
}

func (s *AuditStore) Insert(ctx context.Context, rec port.AuditRecord) error {
	stmt := buildInsert(s.table, rec)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(stmt))
	if err != nil {
		return fmt.Errorf("building audit insert request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if s.user != "" {
		req.Header.Set("X-ClickHouse-User", s.user)
		req.Header.Set("X-ClickHouse-Key", s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("audit insert rejected (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *AuditStore) Close() error { return nil }

// buildInsert renders one record as a literal INSERT statement. Absent
// optional fields are written as NULL, never omitted, so every row carries
// the full column set.
func buildInsert(table string, rec port.AuditRecord) string {
	vals := []string{
		quote(rec.ID.String()),
		nullableString(rec.UserID),
		nullableString(rec.UserEmail),
		nullableString(rec.UserName),
		quote(rec.OriginalSQL),
		nullableString(rec.SanitizedSQL),
		quote(rec.Fingerprint),
		quote(string(rec.Status)),
		nullableInt(rec.ErrorCode),
		nullableString(rec.ErrorCategory),
		nullableString(rec.ErrorMessage),
		nullableInt(rec.RowsReturned),
		nullableInt(rec.ColumnCount),
		nullableInt64(rec.ResultBytes),
		nullableFloat(rec.ElapsedSeconds),
		nullableUint64(rec.RowsRead),
		nullableUint64(rec.BytesRead),
		strconv.Itoa(rec.MaxRowsLimit),
		strconv.Itoa(rec.TimeoutSeconds),
		nullableString(rec.ClientIP),
		nullableString(rec.UserAgent),
		nullableString(rec.SessionID),
		quote(formatTime(rec.ExecutedAt)),
		quote(formatTime(rec.RecordedAt)),
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(auditColumns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(vals, ", "))
	b.WriteString(")")
	return b.String()
}

// quote wraps s as a SQL string literal, doubling single quotes and escaping
// backslashes per the store's literal-quoting rules.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func nullableString(s string) string {
	if s == "" {
		return "NULL"
	}
	return quote(s)
}

func nullableInt(p *int) string {
	if p == nil {
		return "NULL"
	}
	return strconv.Itoa(*p)
}

func nullableInt64(p *int64) string {
	if p == nil {
		return "NULL"
	}
	return strconv.FormatInt(*p, 10)
}

func nullableUint64(p *uint64) string {
	if p == nil {
		return "NULL"
	}
	return strconv.FormatUint(*p, 10)
}

func nullableFloat(p *float64) string {
	if p == nil {
		return "NULL"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000")
}

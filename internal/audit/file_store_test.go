package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sqlward/sqlward/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(sql string) port.AuditRecord {
	rows := 3
	return port.AuditRecord{
		ID:             uuid.New(),
		UserID:         "u1",
		OriginalSQL:    sql,
		SanitizedSQL:   sql,
		Fingerprint:    "deadbeef",
		Status:         port.AuditSuccess,
		RowsReturned:   &rows,
		MaxRowsLimit:   100,
		TimeoutSeconds: 30,
		ExecutedAt:     time.Now().UTC(),
		RecordedAt:     time.Now().UTC(),
	}
}

func TestNewFileStore_CreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewFileStore_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewFileStore("/nonexistent/dir/audit.jsonl")
	require.Error(t, err)
}

func TestFileStore_Insert_WritesNDJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Insert(context.Background(), sampleRecord("SELECT 1")))
	require.NoError(t, fs.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry fileRecord
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "SELECT 1", entry.OriginalSQL)
	assert.Equal(t, "success", entry.Status)
	require.NotNil(t, entry.RowsReturned)
	assert.Equal(t, 3, *entry.RowsReturned)
	assert.NotEmpty(t, entry.RecordedAt)
	// Absent optionals are omitted from the JSON form.
	assert.Nil(t, entry.ErrorCode)
	assert.Empty(t, entry.ErrorCategory)
}

func TestFileStore_Insert_Concurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = fs.Insert(context.Background(), sampleRecord(fmt.Sprintf("SELECT %d", n)))
		}(i)
	}
	wg.Wait()
	require.NoError(t, fs.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	scanner := bufio.NewScanner(f)
	var count int
	for scanner.Scan() {
		var entry fileRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "line %d: %s", count+1, scanner.Text())
		count++
	}
	assert.Equal(t, 50, count)
}

func TestFileStore_Append(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	fs1, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs1.Insert(context.Background(), sampleRecord("SELECT 1")))
	require.NoError(t, fs1.Close())

	fs2, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs2.Insert(context.Background(), sampleRecord("SELECT 2")))
	require.NoError(t, fs2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, `
deny_keywords:
  - merge
  - exchange
limits:
  max_rows: 5000
  timeout_seconds: 60
`)

	pol, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"merge", "exchange"}, pol.DenyKeywords)
	assert.Equal(t, 5000, pol.Limits.MaxRows)
	assert.Equal(t, 60*time.Second, pol.Limits.Timeout())
}

func TestLoadFromFile_EmptyPolicy(t *testing.T) {
	t.Parallel()

	pol, err := LoadFromFile(writePolicy(t, "{}\n"))
	require.NoError(t, err)

	assert.Empty(t, pol.DenyKeywords)
	assert.Zero(t, pol.Limits.MaxRows)
	assert.Zero(t, pol.Limits.Timeout())
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "deny_keywords: [unclosed",
			wantErr: "parsing policy YAML",
		},
		{
			name:    "keyword with spaces",
			content: "deny_keywords: [\"drop table\"]",
			wantErr: "single identifiers",
		},
		{
			name:    "keyword with semicolon",
			content: "deny_keywords: [\"drop;\"]",
			wantErr: "single identifiers",
		},
		{
			name:    "negative max rows",
			content: "limits:\n  max_rows: -1",
			wantErr: "max_rows",
		},
		{
			name:    "negative timeout",
			content: "limits:\n  timeout_seconds: -5",
			wantErr: "timeout_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromFile(writePolicy(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading policy file")
}

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator() *Validator {
	return NewValidator(1<<20, nil)
}

func TestValidator_AcceptsSimpleSelect(t *testing.T) {
	t.Parallel()
	out := testValidator().Validate("SELECT 1")
	require.True(t, out.Accepted)
	assert.Empty(t, out.RejectionReason)
	assert.Equal(t, "SELECT 1", out.SanitizedSQL)
}

func TestValidator_RejectsEmpty(t *testing.T) {
	t.Parallel()
	for _, input := range []string{"", "   ", "\n\t", "-- only a comment"} {
		out := testValidator().Validate(input)
		require.False(t, out.Accepted, "input %q", input)
		assert.Equal(t, "query is empty", out.RejectionReason)
		assert.Empty(t, out.SanitizedSQL)
	}
}

func TestValidator_RejectsOversized(t *testing.T) {
	t.Parallel()
	v := NewValidator(64, nil)
	out := v.Validate("SELECT '" + strings.Repeat("x", 100) + "'")
	require.False(t, out.Accepted)
	assert.Contains(t, out.RejectionReason, "maximum allowed size")
}

func TestValidator_MultiStatementGuard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		input  string
		reject bool
	}{
		{"trailing semicolon tolerated", "SELECT 1;", false},
		{"semicolon mid-query", "SELECT 1; SELECT 2", true},
		{"two semicolons", "SELECT * FROM t; DROP TABLE t;", true},
		{"no semicolon", "SELECT 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := testValidator().Validate(tt.input)
			if tt.reject {
				require.False(t, out.Accepted)
				assert.Equal(t, "multiple SQL statements are not allowed", out.RejectionReason)
			} else {
				assert.True(t, out.Accepted, "reason: %s", out.RejectionReason)
			}
		})
	}
}

func TestValidator_MultiStatementCheckedBeforeKeywords(t *testing.T) {
	t.Parallel()
	// Two semicolons and a DROP: the multi-statement rule fires first.
	out := testValidator().Validate("SELECT * FROM t; DROP TABLE t;")
	require.False(t, out.Accepted)
	assert.Equal(t, "multiple SQL statements are not allowed", out.RejectionReason)
}

func TestValidator_RejectsNonSelect(t *testing.T) {
	t.Parallel()
	for _, input := range []string{"SHOW TABLES", "WITH x AS (SELECT 1) SELECT * FROM x", "EXPLAIN SELECT 1", "describe t"} {
		out := testValidator().Validate(input)
		require.False(t, out.Accepted, "input %q", input)
		assert.Equal(t, "only SELECT statements are allowed", out.RejectionReason)
	}
}

func TestValidator_DenyList(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		keyword string
	}{
		{"nested delete", "SELECT * FROM (DELETE FROM t)", "DELETE"},
		{"drop in string literal", "SELECT 'please drop this'", "DROP"},
		{"case insensitive", "select * from t where a = InSeRt", "INSERT"},
		{"system command", "SELECT 1 FROM system reload", "SYSTEM"},
		{"exec whole word", "SELECT exec FROM t", "EXEC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := testValidator().Validate(tt.input)
			require.False(t, out.Accepted)
			assert.Equal(t, "query contains a forbidden keyword: "+tt.keyword, out.RejectionReason)
		})
	}
}

func TestValidator_WordBoundaryDoesNotMatchIdentifiers(t *testing.T) {
	t.Parallel()
	// Underscore is a word character: inserted_at and call_count are safe.
	for _, input := range []string{
		"SELECT inserted_at FROM t",
		"SELECT call_count, updates FROM metrics",
		"SELECT created_by FROM t",
	} {
		out := testValidator().Validate(input)
		assert.True(t, out.Accepted, "input %q rejected: %s", input, out.RejectionReason)
	}
}

func TestValidator_DenyListEvenWhenLeadingSelect(t *testing.T) {
	t.Parallel()
	// No clause-scope awareness: a banned word inside a nested clause still
	// rejects even though the statement starts with SELECT.
	out := testValidator().Validate("SELECT * FROM (SELECT 1) WHERE x = 'truncate'")
	require.False(t, out.Accepted)
	assert.Contains(t, out.RejectionReason, "TRUNCATE")
}

func TestValidator_ExtraDenyKeywords(t *testing.T) {
	t.Parallel()
	v := NewValidator(1<<20, []string{"optimize"})
	out := v.Validate("SELECT 1 FROM t FINAL optimize")
	require.False(t, out.Accepted)
	assert.Contains(t, out.RejectionReason, "OPTIMIZE")

	assert.True(t, v.Validate("SELECT optimized FROM t").Accepted)
}

func TestValidator_SanitizedStripsComments(t *testing.T) {
	t.Parallel()
	out := testValidator().Validate("  -- comment\nSELECT inserted_at FROM t")
	require.True(t, out.Accepted)
	assert.Equal(t, "SELECT inserted_at FROM t", out.SanitizedSQL)
}

func TestValidator_PureFunction(t *testing.T) {
	t.Parallel()
	v := testValidator()
	a := v.Validate("SELECT 1")
	b := v.Validate("SELECT 1")
	assert.Equal(t, a, b)
}

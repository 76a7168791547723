package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// DenyKeywords is the fixed set of statement keywords that cause rejection
// when they appear as a whole word anywhere in the matching text. The scan is
// deliberately lexical: it has no clause-scope awareness and will reject a
// banned word even inside a nested sub-select or a string literal. The bias
// is toward rejecting a safe query over running a mutating one.
var DenyKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"replace", "merge", "grant", "revoke", "execute", "exec", "call", "system",
}

// ValidationOutcome is the validator's verdict on a raw query. Exactly one of
// RejectionReason / SanitizedSQL is set.
type ValidationOutcome struct {
	Accepted        bool
	RejectionReason string
	SanitizedSQL    string
}

// Validator is a lexical safety gate for user-submitted SQL. It is a pure
// function of its input: no side effects, no database contact.
type Validator struct {
	maxBytes int
	denyRE   *regexp.Regexp
}

// NewValidator builds a validator with the given query byte ceiling and any
// policy-supplied keywords merged into the built-in deny list.
func NewValidator(maxBytes int, extraDeny []string) *Validator {
	words := make([]string, 0, len(DenyKeywords)+len(extraDeny))
	words = append(words, DenyKeywords...)
	for _, w := range extraDeny {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	return &Validator{
		maxBytes: maxBytes,
		denyRE:   regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`),
	}
}

// Validate runs the ordered checks and short-circuits on the first failure.
// The returned sanitized text is the display form of the query (comments and
// blank lines removed, casing preserved); the keyword and prefix checks run
// on the lower-cased matching form.
func (v *Validator) Validate(raw string) ValidationOutcome {
	if strings.TrimSpace(raw) == "" {
		return reject("query is empty")
	}
	if len(raw) > v.maxBytes {
		return reject(fmt.Sprintf("query exceeds the maximum allowed size of %d bytes", v.maxBytes))
	}

	n := Normalize(raw)
	if n.Matching == "" {
		return reject("query is empty")
	}

	// Multi-statement guard: at most one semicolon, and only as the final
	// character.
	if idx := strings.IndexByte(n.Matching, ';'); idx >= 0 {
		if strings.Count(n.Matching, ";") > 1 || idx != len(n.Matching)-1 {
			return reject("multiple SQL statements are not allowed")
		}
	}

	if first, _, _ := strings.Cut(n.Matching, " "); strings.TrimSuffix(first, ";") != "select" {
		return reject("only SELECT statements are allowed")
	}

	if m := v.denyRE.FindString(n.Matching); m != "" {
		return reject(fmt.Sprintf("query contains a forbidden keyword: %s", strings.ToUpper(m)))
	}

	return ValidationOutcome{Accepted: true, SanitizedSQL: n.Display}
}

func reject(reason string) ValidationOutcome {
	return ValidationOutcome{RejectionReason: reason}
}

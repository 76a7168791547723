package domain

import (
	"regexp"
	"strings"
)

var (
	errorCodeRE = regexp.MustCompile(`(?i)\bcode:\s*(\d+)`)
	categoryRE  = regexp.MustCompile(`\b\w+::Exception:\s*([^.]+)`)
)

// ClassifiedError is the structured form of a raw database error message.
// Code and Category are best-effort extractions; Message always carries the
// full raw text so nothing is lost when the patterns do not match.
type ClassifiedError struct {
	Code     *int   `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// Classify extracts a numeric error code and an exception category from a raw
// failure message. It is purely textual and never fails: an unrecognized
// format yields a ClassifiedError with only Message set.
func Classify(raw string) ClassifiedError {
	ce := ClassifiedError{Message: raw}

	if m := errorCodeRE.FindStringSubmatch(raw); m != nil {
		if code := parseSmallInt(m[1]); code != nil {
			ce.Code = code
		}
	}
	if m := categoryRE.FindStringSubmatch(raw); m != nil {
		ce.Category = strings.TrimSpace(m[1])
	}
	return ce
}

// parseSmallInt converts digits to *int, rejecting values that overflow a
// plausible error-code range instead of wrapping.
func parseSmallInt(digits string) *int {
	if len(digits) > 9 {
		return nil
	}
	n := 0
	for _, c := range digits {
		n = n*10 + int(c-'0')
	}
	return &n
}

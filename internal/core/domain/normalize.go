package domain

import "strings"

// Normalized holds the two representations of a query produced by Normalize.
//
// Display preserves the user's casing and line breaks with comments and blank
// lines removed; it is the text that is executed and shown back to the user.
// Matching is lower-cased and whitespace-collapsed and exists only for
// keyword and prefix checks; it must never be executed.
type Normalized struct {
	Display  string
	Matching string
}

// Normalize strips SQL comments from text and returns both the
// display-preserving and the matching representation.
func Normalize(text string) Normalized {
	stripped := stripComments(text)
	return Normalized{
		Display:  cleanDisplay(stripped),
		Matching: strings.ToLower(strings.Join(strings.Fields(stripped), " ")),
	}
}

// stripComments removes line comments (-- to end of line) and non-nested
// block comments (/* ... */, the first */ closes the nearest open /*).
// Comment markers inside single-quoted string literals are left alone.
func stripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case inString:
			b.WriteByte(c)
			if c == '\'' {
				inString = false
			}
			i++
		case c == '\'':
			inString = true
			b.WriteByte(c)
			i++
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += 2 + end + 2
			}
			// Keep token separation where the comment was.
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// cleanDisplay drops blank lines and trailing per-line whitespace left behind
// by comment removal, preserving the remaining casing and line breaks.
func cleanDisplay(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

package domain

import (
	"fmt"
	"strings"
)

// Fingerprint returns a deterministic 32-bit rolling hash of the lower-cased,
// trimmed query text, rendered as 8 hex characters. It exists to group and
// deduplicate audit records in downstream analytics; collisions are accepted
// and it carries no access-control weight.
func Fingerprint(sql string) string {
	s := strings.ToLower(strings.TrimSpace(sql))
	var h uint32
	for _, c := range s {
		h = h*31 + uint32(c)
	}
	return fmt.Sprintf("%08x", h)
}

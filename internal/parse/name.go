package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var seqRe = regexp.MustCompile(`^[^-]*-\s*(\d+)`)

// MachineName derives the display name operators see for a machine code.
// Codes shaped like "PREFIX-N" become "#N"; anything else keeps the code.
func MachineName(code string) string {
	s := strings.TrimSpace(code)
	if m := seqRe.FindStringSubmatch(s); m != nil {
		parts := strings.Split(s, "-")
		// only the segment right after the first dash counts, and it must be a whole integer
		if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			return fmt.Sprintf("#%d", n)
		}
	}
	return s
}

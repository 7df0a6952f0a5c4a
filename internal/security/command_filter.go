package security

import (
	"fmt"
	"regexp"
	"strings"
)

// commandBlacklist is matched against the lower-cased raw command line.
var commandBlacklist = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/`),
	regexp.MustCompile(`rm\s+-rf\s+~`),
	regexp.MustCompile(`rm\s+-rf\s+\*`),
	regexp.MustCompile(`mkfs\.`),
	regexp.MustCompile(`dd\s+if=/dev/zero`),
	regexp.MustCompile(`format\s+[a-z]:`),
	regexp.MustCompile(`del\s+/s\s+/q`),
	regexp.MustCompile(`:\(\)\{\s*:\|:&\s*\};:`), // fork bomb
	regexp.MustCompile(`>\s*/dev/sd`),
}

// CommandFilter rejects shell command lines that match a fixed blacklist of
// destructive patterns. It is advisory: it only inspects the raw text and does
// not sandbox anything.
type CommandFilter struct {
	patterns []*regexp.Regexp
}

func NewCommandFilter() *CommandFilter {
	return &CommandFilter{patterns: commandBlacklist}
}

// IsSafe reports whether cmd passes the blacklist. When it does not, reason
// names the matched pattern.
func (f *CommandFilter) IsSafe(cmd string) (bool, string) {
	lower := strings.ToLower(cmd)
	for _, p := range f.patterns {
		if p.MatchString(lower) {
			return false, fmt.Sprintf("matches dangerous pattern: %s", p.String())
		}
	}
	return true, ""
}

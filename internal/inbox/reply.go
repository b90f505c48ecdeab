package inbox

import (
	"regexp"
	"strings"
)

var (
	wrotePattern      = regexp.MustCompile(`(?i)^\s*On\b.*\bwrote:\s*$`)
	onPrefixPattern   = regexp.MustCompile(`(?i)^\s*On\b.*`)
	originalPattern   = regexp.MustCompile(`(?i)^\s*-{2,}\s*(Original Message|Forwarded message)\s*-{2,}`)
	underscorePattern = regexp.MustCompile(`^\s*_{10,}\s*$`)
	headerPattern     = regexp.MustCompile(`(?i)^\s*\*?From:\*?\s+\S`)
	headerNextPattern = regexp.MustCompile(`(?i)^\s*\*?(Sent|Date|To|Subject):\*?\s`)
	signaturePattern  = regexp.MustCompile(`(?i)^\s*--\s*$|^\s*Sent from my \w+`)
)

// ExtractReply returns the newest part of a plain-text reply with quoted
// history and signatures removed. It falls back to the whole text when
// nothing is left.
func ExtractReply(text string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")

	var kept []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if isQuoteBoundary(lines, i) {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}

	reply := strings.TrimSpace(strings.Join(kept, "\n"))
	if reply == "" {
		return strings.TrimSpace(normalized)
	}
	return reply
}

func isQuoteBoundary(lines []string, i int) bool {
	line := lines[i]
	switch {
	case wrotePattern.MatchString(line):
		return true
	case onPrefixPattern.MatchString(line) && i+1 < len(lines) &&
		strings.HasSuffix(strings.TrimSpace(lines[i+1]), "wrote:"):
		// "On <date>, <name>" wrapped onto the next line before "wrote:"
		return true
	case originalPattern.MatchString(line), underscorePattern.MatchString(line):
		return true
	case signaturePattern.MatchString(line):
		return true
	case headerPattern.MatchString(line):
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			if headerNextPattern.MatchString(lines[j]) {
				return true
			}
		}
	}
	return false
}

package detect

import (
	"fmt"
	"regexp"
	"strings"

	"codeguardian/types"
)

// loggingCallPatterns recognize logging call signatures across the languages
// the analyzer sees in practice. A line has to hit one of these before the
// keyword catalog is consulted at all.
var loggingCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:log|logger|logging)\s*\.\s*(?:log|info|debug|warn|warning|error|severe|fine|finest|trace)\s*\(`),
	regexp.MustCompile(`\bconsole\s*\.\s*(?:log|info|debug|warn|error|trace)\s*\(`),
	regexp.MustCompile(`\bSystem\s*\.\s*(?:out|err)\s*\.\s*print(?:ln|f)?\s*\(`),
	regexp.MustCompile(`\bfmt\s*\.\s*F?Print(?:ln|f)?\s*\(`),
	regexp.MustCompile(`\blog\s*\.\s*(?:Print(?:ln|f)?|Fatal(?:ln|f)?|Panic(?:ln|f)?)\s*\(`),
	regexp.MustCompile(`(?i)\bprint(?:ln)?\s*\(`),
}

// LoggingDetector flags sensitive data flowing into logging calls. It runs
// two phases per line: a cheap logging-call signature check, then the ordered
// keyword catalog against lines that pass it.
type LoggingDetector struct {
	catalog []CatalogEntry
}

// NewLoggingDetector creates a logging detector backed by the built-in
// catalog plus any extra entries, in that order.
func NewLoggingDetector(extra ...CatalogEntry) *LoggingDetector {
	return &LoggingDetector{catalog: Catalog(extra...)}
}

// Detect scans the source for logging calls that reference sensitive data.
// Every catalog hit on a logging line becomes its own issue, so one log
// statement leaking a password and a session ID reports twice.
func (d *LoggingDetector) Detect(source string) []types.Issue {
	var issues []types.Issue
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if !isLoggingCall(line) {
			continue
		}
		for _, m := range matchCatalog(line, d.catalog) {
			issues = append(issues, types.Issue{
				LineNumber:  i + 1,
				Description: fmt.Sprintf("Sensitive data (%s) referenced in logging call", m.Entry.Category),
				Severity:    m.Entry.Severity.CapAtHigh(),
				Message: fmt.Sprintf("Logging call references %q which looks like %s data",
					m.MatchedText, m.Entry.Category),
				SuggestedFix:  fmt.Sprintf("Remove %q from the log statement: %s", m.MatchedText, RemediationFor(m.Entry.Category)),
				DiagnosticRef: fmt.Sprintf("logging:%s", m.Entry.Category),
				Range:         [2]int{m.Start, m.End},
			})
		}
	}
	return issues
}

// isLoggingCall reports whether the line contains a logging call signature
func isLoggingCall(line string) bool {
	for _, p := range loggingCallPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

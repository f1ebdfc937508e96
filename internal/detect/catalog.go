package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"codeguardian/types"
)

// Category classifies sensitive data found in source text
type Category string

const (
	CategoryPII            Category = "PII"
	CategoryCredentials    Category = "Credentials"
	CategoryAPICredentials Category = "API_Credentials"
	CategoryFinancial      Category = "Financial"
	CategorySession        Category = "Session"
	CategoryGeneric        Category = "Generic"
)

// CatalogEntry is one sensitive keyword with its classification. Severity
// is fixed by category; high-risk PII entries carry high individually.
type CatalogEntry struct {
	Keyword  string
	Category Category
	Severity types.Severity
}

// catalog is the ordered sensitive keyword catalog. Order matters: specific
// categories come first, Generic is the catch-all and is checked last.
var catalog = []CatalogEntry{
	// Credentials
	{Keyword: "password", Category: CategoryCredentials, Severity: types.SeverityHigh},
	{Keyword: "passwd", Category: CategoryCredentials, Severity: types.SeverityHigh},
	{Keyword: "passphrase", Category: CategoryCredentials, Severity: types.SeverityHigh},
	{Keyword: "credential", Category: CategoryCredentials, Severity: types.SeverityHigh},

	// API credentials
	{Keyword: "api_key", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "apikey", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "access_token", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "accesstoken", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "client_secret", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "private_key", Category: CategoryAPICredentials, Severity: types.SeverityHigh},
	{Keyword: "secret", Category: CategoryAPICredentials, Severity: types.SeverityHigh},

	// PII, high-risk entries first
	{Keyword: "social security", Category: CategoryPII, Severity: types.SeverityHigh},
	{Keyword: "ssn", Category: CategoryPII, Severity: types.SeverityHigh},
	{Keyword: "passport", Category: CategoryPII, Severity: types.SeverityHigh},
	{Keyword: "date of birth", Category: CategoryPII, Severity: types.SeverityHigh},
	{Keyword: "dateofbirth", Category: CategoryPII, Severity: types.SeverityHigh},
	{Keyword: "email", Category: CategoryPII, Severity: types.SeverityMedium},
	{Keyword: "phone", Category: CategoryPII, Severity: types.SeverityMedium},
	{Keyword: "address", Category: CategoryPII, Severity: types.SeverityMedium},

	// Financial
	{Keyword: "credit card", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "creditcard", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "card number", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "cardnumber", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "cvv", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "iban", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "account number", Category: CategoryFinancial, Severity: types.SeverityHigh},
	{Keyword: "accountnumber", Category: CategoryFinancial, Severity: types.SeverityHigh},

	// Session
	{Keyword: "session_id", Category: CategorySession, Severity: types.SeverityMedium},
	{Keyword: "sessionid", Category: CategorySession, Severity: types.SeverityMedium},
	{Keyword: "session token", Category: CategorySession, Severity: types.SeverityMedium},
	{Keyword: "jsessionid", Category: CategorySession, Severity: types.SeverityMedium},
	{Keyword: "csrf", Category: CategorySession, Severity: types.SeverityMedium},
	{Keyword: "cookie", Category: CategorySession, Severity: types.SeverityMedium},

	// Generic catch-all, checked last
	{Keyword: "token", Category: CategoryGeneric, Severity: types.SeverityLow},
	{Keyword: "auth", Category: CategoryGeneric, Severity: types.SeverityLow},
	{Keyword: "private", Category: CategoryGeneric, Severity: types.SeverityLow},
	{Keyword: "confidential", Category: CategoryGeneric, Severity: types.SeverityLow},
}

// remediations maps each category to its fix advice.
var remediations = map[Category]string{
	CategoryPII:            "never log personally identifiable information; redact or hash it first",
	CategoryCredentials:    "never log credentials; use masked values",
	CategoryAPICredentials: "never log API credentials; reference them by name only",
	CategoryFinancial:      "never log financial data; log a masked reference instead",
	CategorySession:        "never log session identifiers; log an opaque request ID instead",
	CategoryGeneric:        "review whether this value is sensitive before logging it",
}

// Catalog returns a copy of the ordered sensitive keyword catalog, with any
// extra entries appended after the built-ins but before nothing else changes
// their relative order.
func Catalog(extra ...CatalogEntry) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(catalog)+len(extra))
	out = append(out, catalog...)
	out = append(out, extra...)
	return out
}

// RemediationFor returns the fix advice for a category
func RemediationFor(category Category) string {
	if advice, ok := remediations[category]; ok {
		return advice
	}
	return remediations[CategoryGeneric]
}

// keywordMatch is one catalog hit on a line
type keywordMatch struct {
	Entry       CatalogEntry
	MatchedText string
	Start       int
	End         int
}

// matchCatalog finds every catalog keyword occurrence in the line, in
// catalog order then position order. Matching is case-insensitive
// substring matching, so camelCase identifiers like getPassword hit the
// password keyword. Generic entries are suppressed when their span
// overlaps an earlier, more specific match. Matched text and offsets
// always refer to the original line, even when lowercasing changes rune
// byte lengths.
func matchCatalog(line string, entries []CatalogEntry) []keywordMatch {
	lower, offsets := lowerWithOffsets(line)

	var matches []keywordMatch
	for _, entry := range entries {
		keyword := strings.ToLower(entry.Keyword)
		for start := 0; ; {
			idx := strings.Index(lower[start:], keyword)
			if idx < 0 {
				break
			}
			origStart := offsets[start+idx]
			origEnd := offsets[start+idx+len(keyword)]

			if entry.Category != CategoryGeneric || !overlapsAny(matches, origStart, origEnd) {
				matches = append(matches, keywordMatch{
					Entry:       entry,
					MatchedText: line[origStart:origEnd],
					Start:       origStart,
					End:         origEnd,
				})
			}

			start = start + idx + len(keyword)
		}
	}
	return matches
}

// lowerWithOffsets lowercases the line rune by rune and returns, for every
// byte of the lowered form plus one past the end, the byte offset of the
// originating rune in the original line. Keyword hits in the lowered form
// map back through this table so slices never cross the original's bounds.
func lowerWithOffsets(line string) (string, []int) {
	var b strings.Builder
	b.Grow(len(line))
	offsets := make([]int, 0, len(line)+1)

	for i, r := range line {
		lowered := unicode.ToLower(r)
		width := utf8.RuneLen(lowered)
		if width < 0 {
			lowered = r
			width = utf8.RuneLen(r)
		}
		for j := 0; j < width; j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lowered)
	}
	offsets = append(offsets, len(line))
	return b.String(), offsets
}

func overlapsAny(matches []keywordMatch, start, end int) bool {
	for _, m := range matches {
		if start < m.End && end > m.Start {
			return true
		}
	}
	return false
}

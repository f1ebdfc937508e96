package suggest

import (
	"fmt"
	"strings"

	"codeguardian/types"
)

// templateFor picks a remediation template from the issue category. The
// match is textual over the issue description plus diagnostic ref; unknown
// categories fall through to a comment carrying the suggested fix.
func templateFor(issue types.Issue, originalCode string) string {
	haystack := strings.ToLower(issue.Description + " " + issue.DiagnosticRef)

	switch {
	case strings.Contains(haystack, "sql"):
		return preparedStatementTemplate(originalCode)
	case strings.Contains(haystack, "secret") || strings.Contains(haystack, "hardcoded"):
		return envVarTemplate(originalCode)
	case strings.Contains(haystack, "logging:") || strings.Contains(haystack, "logging call"):
		return redactionTemplate(issue, originalCode)
	default:
		return commentTemplate(issue, originalCode)
	}
}

func preparedStatementTemplate(originalCode string) string {
	var b strings.Builder
	b.WriteString("// Use a parameterized query instead of string concatenation:\n")
	b.WriteString("PreparedStatement stmt = connection.prepareStatement(\n")
	b.WriteString("    \"SELECT * FROM table WHERE column = ?\");\n")
	b.WriteString("stmt.setString(1, value);\n")
	b.WriteString("ResultSet rs = stmt.executeQuery();")
	if originalCode != "" {
		b.WriteString("\n// Replaces: " + strings.TrimSpace(originalCode))
	}
	return b.String()
}

func envVarTemplate(originalCode string) string {
	var b strings.Builder
	b.WriteString("// Read the secret from the environment instead of source:\n")
	b.WriteString("String secret = System.getenv(\"APP_SECRET\");\n")
	b.WriteString("if (secret == null || secret.isEmpty()) {\n")
	b.WriteString("    throw new IllegalStateException(\"APP_SECRET is not configured\");\n")
	b.WriteString("}")
	if originalCode != "" {
		b.WriteString("\n// Replaces: " + strings.TrimSpace(originalCode))
	}
	return b.String()
}

func redactionTemplate(issue types.Issue, originalCode string) string {
	var b strings.Builder
	b.WriteString("// Redact the sensitive value before logging:\n")
	if strings.TrimSpace(originalCode) != "" {
		b.WriteString("// " + strings.TrimSpace(originalCode) + "\n")
	}
	b.WriteString("LOGGER.info(\"<redacted>\");\n")
	b.WriteString(fmt.Sprintf("// %s", issue.SuggestedFix))
	return b.String()
}

func commentTemplate(issue types.Issue, originalCode string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("// FIX: %s", issue.SuggestedFix))
	if strings.TrimSpace(originalCode) != "" {
		b.WriteString("\n" + originalCode)
	}
	return b.String()
}

// fallbackSuggestion is the degraded output when synthesis fails for any
// reason: an explanatory comment plus the original fix advice, still cached
// and still stable.
func fallbackSuggestion(issue types.Issue) *types.Suggestion {
	return &types.Suggestion{
		ID:               suggestionID(issue),
		IssueDescription: issue.Description,
		SuggestedFix:     issue.SuggestedFix,
		GeneratedCode:    fmt.Sprintf("// Automatic fix generation was unavailable for this issue.\n// %s", issue.SuggestedFix),
		LineNumber:       issue.LineNumber,
		FileName:         issue.FileName,
	}
}

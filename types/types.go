package types

import "context"

// ============================================================================
// SEVERITY
// ============================================================================

// Severity is the ordered issue severity scale.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRanks orders severities for comparison. Unknown values rank lowest.
var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric order of the severity, 0 for unknown values.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity normalizes a severity string. Unknown values parse to low.
func ParseSeverity(s string) Severity {
	sev := Severity(s)
	if !sev.Valid() {
		return SeverityLow
	}
	return sev
}

// CapAtHigh maps rule severities onto the three-level issue scale.
// Issues never carry critical; critical rules surface as high issues.
func (s Severity) CapAtHigh() Severity {
	if s == SeverityCritical {
		return SeverityHigh
	}
	if !s.Valid() {
		return SeverityLow
	}
	return s
}

// ============================================================================
// RULES
// ============================================================================

// Rule is a single detection rule. Pattern holds uncompiled regex source;
// rules with an empty Pattern are structural and never evaluated by the
// pattern detector.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Pattern     string   `json:"pattern,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// RuleSet is the complete loaded rule collection. Rule order is the file
// order and is preserved; a reload replaces the set wholesale.
type RuleSet struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// ============================================================================
// ANALYSIS RESULTS
// ============================================================================

// RawFinding is a detector-internal match before issue conversion.
type RawFinding struct {
	RuleID      string   `json:"ruleId"`
	Line        int      `json:"line"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	MatchedText string   `json:"matchedText"`
}

// Issue is a single user-facing analysis result. LineNumber is 1-based.
// DiagnosticRef and Range are opaque hints carried through unmodified.
type Issue struct {
	FileName      string   `json:"fileName"`
	LineNumber    int      `json:"lineNumber"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	SuggestedFix  string   `json:"suggestedFix"`
	DiagnosticRef string   `json:"diagnosticRef,omitempty"`
	Range         [2]int   `json:"range"`
}

// SemanticMatch is an ephemeral similarity hit. It is never persisted and
// never cached across analyze calls.
type SemanticMatch struct {
	Keyword     string  `json:"keyword"`
	Similarity  float64 `json:"similarity"` // in [0, 1]
	MatchedText string  `json:"matchedText"`
	Category    string  `json:"category"`
}

// AnalysisResult is the aggregated output for one document. FileName is
// assigned by the caller after analysis; detectors only ever see source text.
type AnalysisResult struct {
	FileName string  `json:"fileName"`
	Issues   []Issue `json:"issues"`
}

// ============================================================================
// SUGGESTIONS
// ============================================================================

// Suggestion is a remediation proposal for one issue. ID is derived from the
// issue's file, line, and description, so the same issue always maps to the
// same suggestion.
type Suggestion struct {
	ID               string `json:"id"`
	IssueDescription string `json:"issueDescription"`
	SuggestedFix     string `json:"suggestedFix"`
	GeneratedCode    string `json:"generatedCode"`
	LineNumber       int    `json:"lineNumber"`
	FileName         string `json:"fileName"`
	OriginalCode     string `json:"originalCode"`
}

// ============================================================================
// CAPABILITIES
// ============================================================================

// EmbeddingProvider turns texts into vectors for semantic matching.
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// FixGenerator produces generated fix code from a remediation prompt.
// It is an optional capability; template output remains authoritative when
// no generator is configured or a generation fails.
type FixGenerator interface {
	GenerateFix(ctx context.Context, prompt string) (string, error)
}

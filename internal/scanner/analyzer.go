package scanner

import (
	"context"

	"codeguardian/internal/detect"
	"codeguardian/types"
)

// RuleSource provides the current rule set and rule lookups. The rule store
// satisfies this; tests may substitute a fixture.
type RuleSource interface {
	RuleSet() *types.RuleSet
	GetRule(id string) (types.Rule, bool)
}

// Analyzer runs every detector over a document and aggregates their issues.
// Detectors are stateless with respect to documents, so one analyzer is safe
// for concurrent use.
type Analyzer struct {
	rules    RuleSource
	patterns *detect.PatternDetector
	logging  *detect.LoggingDetector
	semantic *detect.SemanticDetector
}

// NewAnalyzer wires the detector pipeline
func NewAnalyzer(rules RuleSource, patterns *detect.PatternDetector, logging *detect.LoggingDetector, semantic *detect.SemanticDetector) *Analyzer {
	return &Analyzer{
		rules:    rules,
		patterns: patterns,
		logging:  logging,
		semantic: semantic,
	}
}

// Analyze runs the detectors in a fixed order and concatenates their issues:
// pattern rules first, then sensitive-logging, then semantic matches. Issues
// are never deduplicated across detectors; overlapping reports from two
// detectors are two issues. FileName is left empty for the caller to assign.
func (a *Analyzer) Analyze(ctx context.Context, source string) *types.AnalysisResult {
	issues := make([]types.Issue, 0)

	if a.patterns != nil && a.rules != nil {
		findings := a.patterns.Apply(a.rules.RuleSet(), source)
		issues = append(issues, detect.FindingsToIssues(findings, a.rules.GetRule)...)
	}
	if a.logging != nil {
		issues = append(issues, a.logging.Detect(source)...)
	}
	if a.semantic != nil {
		issues = append(issues, a.semantic.Detect(ctx, source)...)
	}

	return &types.AnalysisResult{Issues: issues}
}

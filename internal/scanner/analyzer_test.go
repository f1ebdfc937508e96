package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeguardian/internal/detect"
	"codeguardian/types"
)

// fixtureRules is a static RuleSource for tests
type fixtureRules struct {
	set *types.RuleSet
}

func (f *fixtureRules) RuleSet() *types.RuleSet { return f.set }

func (f *fixtureRules) GetRule(id string) (types.Rule, bool) {
	for _, rule := range f.set.Rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return types.Rule{}, false
}

func newTestAnalyzer(rules *types.RuleSet) *Analyzer {
	return NewAnalyzer(
		&fixtureRules{set: rules},
		detect.NewPatternDetector(),
		detect.NewLoggingDetector(),
		detect.NewSemanticDetector(nil), // keyword-only, keeps tests deterministic
	)
}

func passwordRuleSet() *types.RuleSet {
	return &types.RuleSet{
		Version: "test",
		Rules: []types.Rule{
			{
				ID:          "password-literal",
				Name:        "Password literal",
				Description: "Source mentions a password",
				Severity:    types.SeverityHigh,
				Pattern:     `password`,
				Enabled:     true,
			},
		},
	}
}

func TestAnalyzer_DetectorOrderIsFixed(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	result := analyzer.Analyze(context.Background(), `logger.info("password");`)

	require.GreaterOrEqual(t, len(result.Issues), 3)

	// Pattern issues first, then logging, then semantic.
	var order []string
	for _, issue := range result.Issues {
		prefix := strings.SplitN(issue.DiagnosticRef, ":", 2)[0]
		if len(order) == 0 || order[len(order)-1] != prefix {
			order = append(order, prefix)
		}
	}
	assert.Equal(t, []string{"rule", "logging", "semantic"}, order)
}

func TestAnalyzer_NoDeduplicationAcrossDetectors(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	result := analyzer.Analyze(context.Background(), `logger.info("password");`)

	// The same leak reports once per detector that sees it.
	refs := make(map[string]bool)
	for _, issue := range result.Issues {
		assert.Equal(t, 1, issue.LineNumber)
		refs[issue.DiagnosticRef] = true
	}
	assert.True(t, refs["rule:password-literal"])
	assert.True(t, refs["logging:Credentials"])
	assert.True(t, refs["semantic:password"])
}

func TestAnalyzer_DeterministicAcrossRuns(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())
	source := "logger.info(\"password\");\nint x = 1;\nconsole.log(sessionId);\n"

	first := analyzer.Analyze(context.Background(), source)
	second := analyzer.Analyze(context.Background(), source)

	assert.Equal(t, first, second)
}

func TestAnalyzer_FileNameLeftForCaller(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	result := analyzer.Analyze(context.Background(), "clean source")

	assert.Empty(t, result.FileName)
	assert.NotNil(t, result.Issues)
	assert.Empty(t, result.Issues)
}

func TestAnalyzer_NilDetectorsSkipped(t *testing.T) {
	analyzer := NewAnalyzer(nil, nil, nil, nil)

	result := analyzer.Analyze(context.Background(), `logger.info("password");`)

	assert.Empty(t, result.Issues)
}

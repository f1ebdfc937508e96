package detect

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"codeguardian/types"
)

// PatternDetector applies regex rules to source text line by line. It holds
// no rule state of its own; every call receives the rule set to evaluate.
type PatternDetector struct{}

// NewPatternDetector creates a stateless pattern detector
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

// Apply evaluates every enabled, pattern-bearing rule against the source and
// returns the raw findings. Findings are ordered by line first, then by rule
// order within the set. Rules whose pattern fails to compile are skipped with
// a warning so one bad rule cannot take down the rest of the set.
func (d *PatternDetector) Apply(ruleSet *types.RuleSet, source string) []types.RawFinding {
	if ruleSet == nil || len(ruleSet.Rules) == 0 {
		return nil
	}

	type compiledRule struct {
		rule    types.Rule
		pattern *regexp.Regexp
	}

	compiled := make([]compiledRule, 0, len(ruleSet.Rules))
	for _, rule := range ruleSet.Rules {
		if !rule.Enabled || rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			log.Printf("⚠️  Skipping rule %s: invalid pattern: %v", rule.ID, err)
			continue
		}
		compiled = append(compiled, compiledRule{rule: rule, pattern: re})
	}
	if len(compiled) == 0 {
		return nil
	}

	var findings []types.RawFinding
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		for _, cr := range compiled {
			for _, loc := range cr.pattern.FindAllStringSubmatchIndex(line, -1) {
				findings = append(findings, types.RawFinding{
					RuleID:      cr.rule.ID,
					Line:        i + 1,
					Description: cr.rule.Description,
					Severity:    cr.rule.Severity,
					MatchedText: extractMatch(line, loc),
				})
			}
		}
	}
	return findings
}

// extractMatch returns the first capture group when the pattern defines one
// and it participated in the match, otherwise the whole match.
func extractMatch(line string, loc []int) string {
	if len(loc) >= 4 && loc[2] >= 0 {
		return line[loc[2]:loc[3]]
	}
	return line[loc[0]:loc[1]]
}

// FindingsToIssues converts raw findings into issues, resolving rule names
// through the supplied lookup. Severity is capped at high at this boundary;
// critical rules surface as high issues.
func FindingsToIssues(findings []types.RawFinding, lookup func(id string) (types.Rule, bool)) []types.Issue {
	issues := make([]types.Issue, 0, len(findings))
	for _, f := range findings {
		name := f.RuleID
		if lookup != nil {
			if rule, ok := lookup(f.RuleID); ok && rule.Name != "" {
				name = rule.Name
			}
		}
		issues = append(issues, types.Issue{
			LineNumber:    f.Line,
			Description:   f.Description,
			Severity:      f.Severity.CapAtHigh(),
			Message:       fmt.Sprintf("%s: matched %q", name, f.MatchedText),
			SuggestedFix:  fmt.Sprintf("Review and address: %s", f.Description),
			DiagnosticRef: "rule:" + f.RuleID,
		})
	}
	return issues
}

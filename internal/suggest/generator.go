package suggest

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"

	"codeguardian/types"
)

// contextRadius is how many lines around the issue line go into the fix
// generation context window.
const contextRadius = 3

// Generator turns issues into remediation suggestions. Generation is
// sequential per issue; the cache makes repeat requests free and keeps the
// returned pointers stable. The fix generator is optional; template output
// stands on its own when refinement is unavailable or fails.
type Generator struct {
	cache *Cache
	fixer types.FixGenerator
}

// NewGenerator creates a suggestion generator over an injected cache
func NewGenerator(cache *Cache, fixer types.FixGenerator) *Generator {
	return &Generator{cache: cache, fixer: fixer}
}

// Cache exposes the underlying suggestion cache
func (g *Generator) Cache() *Cache {
	return g.cache
}

// Generate produces one suggestion per issue, in issue order. A cache hit
// returns the previously stored suggestion without any synthesis work; a
// miss synthesizes, caches, and returns the winner under that key.
func (g *Generator) Generate(ctx context.Context, issues []types.Issue, source string) []*types.Suggestion {
	suggestions := make([]*types.Suggestion, 0, len(issues))
	for _, issue := range issues {
		key := CacheKey(issue)
		if cached, ok := g.cache.Get(key); ok {
			suggestions = append(suggestions, cached)
			continue
		}
		suggestion := g.synthesize(ctx, issue, source)
		suggestions = append(suggestions, g.cache.PutIfAbsent(key, suggestion))
	}
	return suggestions
}

// synthesize builds a suggestion from the issue and its surrounding source.
// It never fails: any internal error degrades to the fallback suggestion.
func (g *Generator) synthesize(ctx context.Context, issue types.Issue, source string) (s *types.Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  Suggestion synthesis failed for %s:%d: %v", issue.FileName, issue.LineNumber, r)
			s = fallbackSuggestion(issue)
		}
	}()

	window, originalCode := contextWindow(source, issue.LineNumber)
	generated := templateFor(issue, originalCode)

	if g.fixer != nil {
		refined, err := g.fixer.GenerateFix(ctx, buildPrompt(issue, window, generated))
		if err != nil {
			log.Printf("⚠️  Fix refinement failed for %s:%d, keeping template: %v",
				issue.FileName, issue.LineNumber, err)
		} else if cleaned := cleanGeneratedCode(refined); cleaned != "" {
			generated = cleaned
		}
	}

	return &types.Suggestion{
		ID:               suggestionID(issue),
		IssueDescription: issue.Description,
		SuggestedFix:     issue.SuggestedFix,
		GeneratedCode:    generated,
		LineNumber:       issue.LineNumber,
		FileName:         issue.FileName,
		OriginalCode:     originalCode,
	}
}

// suggestionID derives a stable identifier from the issue's file, line and
// description, so the same issue always maps to the same suggestion ID.
func suggestionID(issue types.Issue) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%s", issue.FileName, issue.LineNumber, issue.Description)
	return fmt.Sprintf("sug-%016x", h.Sum64())
}

// contextWindow returns the source lines around the 1-based issue line and
// the issue line itself. Out-of-range lines clamp to whatever exists.
func contextWindow(source string, lineNumber int) (window, originalCode string) {
	lines := strings.Split(source, "\n")
	if lineNumber >= 1 && lineNumber <= len(lines) {
		originalCode = lines[lineNumber-1]
	}

	start := lineNumber - 1 - contextRadius
	if start < 0 {
		start = 0
	}
	end := lineNumber + contextRadius
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", originalCode
	}
	return strings.Join(lines[start:end], "\n"), originalCode
}

// buildPrompt assembles the refinement prompt for the fix generator
func buildPrompt(issue types.Issue, window, template string) string {
	var b strings.Builder
	b.WriteString("You are a security remediation expert. Rewrite the flagged code so the issue is resolved.\n\n")
	b.WriteString("ISSUE DETAILS:\n")
	fmt.Fprintf(&b, "- Description: %s\n", issue.Description)
	fmt.Fprintf(&b, "- Severity: %s\n", issue.Severity)
	fmt.Fprintf(&b, "- Line: %d\n", issue.LineNumber)
	fmt.Fprintf(&b, "- Recommended fix: %s\n\n", issue.SuggestedFix)
	if window != "" {
		b.WriteString("CODE CONTEXT:\n")
		b.WriteString(window)
		b.WriteString("\n\n")
	}
	b.WriteString("STARTING POINT:\n")
	b.WriteString(template)
	b.WriteString("\n\nRespond with only the corrected code, no explanation.")
	return b.String()
}

// cleanGeneratedCode strips markdown fences and surrounding noise from
// model output, returning "" when nothing usable remains.
func cleanGeneratedCode(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			return ""
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}
	return strings.TrimSpace(cleaned)
}

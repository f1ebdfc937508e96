package detect

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"codeguardian/internal/embedding"
	"codeguardian/types"
)

// similarityThreshold is the minimum cosine similarity for a candidate to be
// reported as semantically sensitive.
const similarityThreshold = 0.85

// BackendState tracks the lifecycle of the embedding backend
type BackendState int

const (
	StateUninitialized BackendState = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s BackendState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	stringLiteralPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	accessorPattern      = regexp.MustCompile(`\b(get[A-Z][A-Za-z0-9_]*)\s*\(`)
	identifierPattern    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// sensitiveRoots mark identifiers worth embedding. They only gate candidate
// extraction; the similarity threshold decides what gets reported.
var sensitiveRoots = []string{
	"pass", "secret", "token", "key", "cred", "auth", "ssn",
	"card", "session", "cookie", "account", "email", "phone", "pin",
}

// SemanticDetector finds sensitive data in logging calls by embedding
// similarity against the keyword catalog. It shares the logging detector's
// call-signature gate but classifies by vector distance instead of exact
// keywords. The embedding backend is probed asynchronously exactly
// once at construction; until it is ready, and whenever it fails, detection
// degrades silently to keyword matching over the same candidates.
type SemanticDetector struct {
	provider types.EmbeddingProvider
	catalog  []CatalogEntry

	mu    sync.RWMutex
	state BackendState
}

// NewSemanticDetector creates a semantic detector and kicks off the one-time
// backend probe. The constructor never blocks on the backend.
func NewSemanticDetector(provider types.EmbeddingProvider, extra ...CatalogEntry) *SemanticDetector {
	d := &SemanticDetector{
		provider: provider,
		catalog:  Catalog(extra...),
		state:    StateUninitialized,
	}
	if provider == nil {
		d.state = StateFailed
		return d
	}
	d.state = StateInitializing
	go d.initialize()
	return d
}

// initialize probes the embedding backend once and settles the state
func (d *SemanticDetector) initialize() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := d.provider.Embed(ctx, []string{"initialization probe"})

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateFailed
		log.Printf("⚠️  Semantic backend unavailable, falling back to keyword matching: %v", err)
		return
	}
	d.state = StateReady
	log.Printf("✅ Semantic backend ready")
}

// State returns the current backend state
func (d *SemanticDetector) State() BackendState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Detect scans logging lines for sensitive candidates. When the backend is
// ready it embeds candidates per line and compares them against the catalog
// keywords; embedding failure on a line falls back to keyword matching for
// that line only. Lines that are not logging calls are never inspected, and
// embeddings are computed fresh on every call.
func (d *SemanticDetector) Detect(ctx context.Context, source string) []types.Issue {
	if d.State() != StateReady {
		return d.keywordScan(source)
	}

	keywordVecs, err := d.embedKeywords(ctx)
	if err != nil {
		log.Printf("⚠️  Keyword embedding failed, falling back to keyword matching: %v", err)
		return d.keywordScan(source)
	}

	var issues []types.Issue
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if !isLoggingCall(line) {
			continue
		}
		candidates := extractCandidates(line)
		if len(candidates) == 0 {
			continue
		}

		texts := make([]string, len(candidates))
		for j, c := range candidates {
			texts[j] = embedding.PreprocessText(c.Text)
		}
		vecs, err := d.provider.Embed(ctx, texts)
		if err != nil || len(vecs) != len(candidates) {
			issues = append(issues, d.keywordScanLine(line, i+1)...)
			continue
		}

		for j, c := range candidates {
			match, ok := d.bestMatch(vecs[j], keywordVecs, c.Text)
			if !ok {
				continue
			}
			issues = append(issues, types.Issue{
				LineNumber: i + 1,
				Description: fmt.Sprintf("%q is %.0f%% similar to sensitive keyword %q (%s)",
					match.MatchedText, match.Similarity*100, match.Keyword, match.Category),
				Severity: severityForKeyword(d.catalog, match.Keyword).CapAtHigh(),
				Message: fmt.Sprintf("Semantic match: %q resembles %s data",
					match.MatchedText, match.Category),
				SuggestedFix:  RemediationFor(Category(match.Category)),
				DiagnosticRef: "semantic:" + match.Keyword,
				Range:         [2]int{c.Start, c.End},
			})
		}
	}
	return issues
}

// embedKeywords embeds the catalog keywords for this call only
func (d *SemanticDetector) embedKeywords(ctx context.Context) ([][]float64, error) {
	texts := make([]string, len(d.catalog))
	for i, entry := range d.catalog {
		texts[i] = embedding.PreprocessText(entry.Keyword)
	}
	vecs, err := d.provider.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(d.catalog) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(d.catalog))
	}
	return vecs, nil
}

// bestMatch finds the catalog keyword most similar to the candidate vector.
// Ties keep the earlier catalog entry so results stay deterministic.
func (d *SemanticDetector) bestMatch(vec []float64, keywordVecs [][]float64, text string) (types.SemanticMatch, bool) {
	best := types.SemanticMatch{MatchedText: text}
	for i, entry := range d.catalog {
		sim := embedding.Similarity(vec, keywordVecs[i])
		if sim > best.Similarity {
			best.Similarity = sim
			best.Keyword = entry.Keyword
			best.Category = string(entry.Category)
		}
	}
	return best, best.Similarity >= similarityThreshold
}

// keywordScan is the degraded path: exact keyword matching over the same
// logging-line candidates the semantic path would embed.
func (d *SemanticDetector) keywordScan(source string) []types.Issue {
	var issues []types.Issue
	for i, line := range strings.Split(source, "\n") {
		if !isLoggingCall(line) {
			continue
		}
		issues = append(issues, d.keywordScanLine(line, i+1)...)
	}
	return issues
}

func (d *SemanticDetector) keywordScanLine(line string, lineNumber int) []types.Issue {
	var issues []types.Issue
	for _, c := range extractCandidates(line) {
		lower := strings.ToLower(c.Text)
		for _, entry := range d.catalog {
			if !strings.Contains(lower, strings.ToLower(entry.Keyword)) {
				continue
			}
			issues = append(issues, types.Issue{
				LineNumber: lineNumber,
				Description: fmt.Sprintf("%q matches sensitive keyword %q (%s)",
					c.Text, entry.Keyword, entry.Category),
				Severity:      entry.Severity.CapAtHigh(),
				Message:       fmt.Sprintf("Keyword match: %q resembles %s data", c.Text, entry.Category),
				SuggestedFix:  RemediationFor(entry.Category),
				DiagnosticRef: "semantic:" + entry.Keyword,
				Range:         [2]int{c.Start, c.End},
			})
			break
		}
	}
	return issues
}

// severityForKeyword looks up the catalog severity for a keyword
func severityForKeyword(entries []CatalogEntry, keyword string) types.Severity {
	for _, entry := range entries {
		if entry.Keyword == keyword {
			return entry.Severity
		}
	}
	return types.SeverityLow
}

// candidate is a span of source text worth checking for sensitivity
type candidate struct {
	Text  string
	Start int
	End   int
}

// extractCandidates pulls string literals, getter-style accessors and
// sensitively named identifiers from a line, left to right per kind, with
// duplicate texts collapsed to their first occurrence.
func extractCandidates(line string) []candidate {
	var out []candidate
	seen := make(map[string]bool)

	add := func(text string, start, end int) {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, candidate{Text: text, Start: start, End: end})
	}

	for _, loc := range stringLiteralPattern.FindAllStringSubmatchIndex(line, -1) {
		if loc[2] >= 0 {
			add(line[loc[2]:loc[3]], loc[2], loc[3])
		}
	}
	for _, loc := range accessorPattern.FindAllStringSubmatchIndex(line, -1) {
		add(line[loc[2]:loc[3]], loc[2], loc[3])
	}
	for _, loc := range identifierPattern.FindAllStringIndex(line, -1) {
		text := line[loc[0]:loc[1]]
		if hasSensitiveRoot(text) {
			add(text, loc[0], loc[1])
		}
	}
	return out
}

func hasSensitiveRoot(identifier string) bool {
	lower := strings.ToLower(identifier)
	for _, root := range sensitiveRoots {
		if strings.Contains(lower, root) {
			return true
		}
	}
	return false
}

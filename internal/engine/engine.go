package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"codeguardian/internal/advisory"
	"codeguardian/internal/detect"
	"codeguardian/internal/errors"
	"codeguardian/internal/events"
	"codeguardian/internal/fix"
	"codeguardian/internal/rules"
	"codeguardian/internal/scanner"
	"codeguardian/internal/store"
	"codeguardian/internal/suggest"
	"codeguardian/internal/utils"
	"codeguardian/messages"
	"codeguardian/types"
)

// Broadcaster pushes live updates to connected clients. The server's
// websocket hub satisfies this; a nil broadcaster disables broadcasting.
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// Config wires the engine's collaborators. Rules, Suggester and Applicator
// are required; everything else is optional and degrades to a no-op.
type Config struct {
	Rules      *rules.Store
	Embedder   types.EmbeddingProvider
	Suggester  *suggest.Generator
	Applicator *fix.Applicator
	Knowledge  *store.KnowledgeStore
	Producer   *events.Producer
	Monitor    *events.Monitor
	Advisory   *advisory.Feed
}

// Engine orchestrates the detection and remediation pipeline: it owns the
// analyzer, regenerates detectors when the advisory feed refreshes, and fans
// results out to the event producer, the knowledge store and the broadcaster.
type Engine struct {
	rules      *rules.Store
	embedder   types.EmbeddingProvider
	suggester  *suggest.Generator
	applicator *fix.Applicator
	knowledge  *store.KnowledgeStore
	producer   *events.Producer
	monitor    *events.Monitor
	feed       *advisory.Feed

	mu          sync.RWMutex
	analyzer    *scanner.Analyzer
	semantic    *detect.SemanticDetector
	broadcaster Broadcaster
	startedAt   time.Time
}

// New creates the engine and builds the initial detector pipeline
func New(cfg Config) (*Engine, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if cfg.Suggester == nil {
		return nil, fmt.Errorf("suggestion generator is required")
	}
	if cfg.Applicator == nil {
		return nil, fmt.Errorf("fix applicator is required")
	}

	e := &Engine{
		rules:      cfg.Rules,
		embedder:   cfg.Embedder,
		suggester:  cfg.Suggester,
		applicator: cfg.Applicator,
		knowledge:  cfg.Knowledge,
		producer:   cfg.Producer,
		monitor:    cfg.Monitor,
		feed:       cfg.Advisory,
	}
	e.rebuildAnalyzer()

	e.rules.OnReload(func(ruleSet *types.RuleSet) {
		e.emit(events.Event{
			Type:   events.TypeRulesReloaded,
			Source: "rules",
			Data: map[string]interface{}{
				"version":    ruleSet.Version,
				"rule_count": len(ruleSet.Rules),
			},
		})
		e.broadcast("rules_reloaded", messages.NewRulesReloaded(ruleSet, e.rules.Quarantined()))
	})

	if e.feed != nil {
		e.feed.OnUpdate(func(source string, keywordCount int) {
			e.rebuildAnalyzer()
			e.emit(events.Event{
				Type:   events.TypeAdvisoryUpdated,
				Source: "advisory",
				Data: map[string]interface{}{
					"feed":          source,
					"keyword_count": keywordCount,
				},
			})
			e.broadcast("advisory_updated", messages.AdvisoryUpdatedMsg{
				Source:       source,
				KeywordCount: keywordCount,
				Timestamp:    time.Now(),
			})
		})
	}

	return e, nil
}

// SetBroadcaster attaches the live-update sink. Call before Start.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// Start begins the engine's background work: the advisory refresh loop runs
// until the context is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()

	if e.feed != nil {
		go e.feed.StartPeriodicUpdates(ctx)
	}
	log.Println("🤖 Engine started")
}

// rebuildAnalyzer reconstructs the detector pipeline with the current
// advisory keywords. The semantic detector re-probes its backend on rebuild.
func (e *Engine) rebuildAnalyzer() {
	var extra []detect.CatalogEntry
	if e.feed != nil {
		extra = e.feed.CatalogEntries()
	}

	semantic := detect.NewSemanticDetector(e.embedder, extra...)
	analyzer := scanner.NewAnalyzer(
		e.rules,
		detect.NewPatternDetector(),
		detect.NewLoggingDetector(extra...),
		semantic,
	)

	e.mu.Lock()
	e.analyzer = analyzer
	e.semantic = semantic
	e.mu.Unlock()
}

// currentAnalyzer returns the analyzer snapshot for one operation
func (e *Engine) currentAnalyzer() *scanner.Analyzer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.analyzer
}

// AnalyzeSource analyzes one in-memory document and reports the outcome
func (e *Engine) AnalyzeSource(ctx context.Context, fileName, source string) *types.AnalysisResult {
	start := time.Now()

	result := e.currentAnalyzer().Analyze(ctx, source)
	result.FileName = fileName
	for i := range result.Issues {
		result.Issues[i].FileName = fileName
	}

	e.reportAnalysis(ctx, result, time.Since(start))
	return result
}

// AnalyzeDirectory walks a directory tree and analyzes every code file
func (e *Engine) AnalyzeDirectory(ctx context.Context, root string) ([]*types.AnalysisResult, error) {
	start := time.Now()

	results, err := e.currentAnalyzer().AnalyzeDirectory(ctx, root)
	if err != nil {
		e.emit(events.Event{
			Type:   events.TypeError,
			Source: "analyzer",
			Data:   map[string]interface{}{"source": "analyzer", "message": err.Error()},
		})
		return nil, err
	}

	for _, result := range results {
		for i := range result.Issues {
			result.Issues[i].FileName = result.FileName
		}
		e.reportAnalysis(ctx, result, time.Since(start))
	}
	return results, nil
}

// reportAnalysis publishes, persists and broadcasts one analysis result
func (e *Engine) reportAnalysis(ctx context.Context, result *types.AnalysisResult, duration time.Duration) {
	critical := 0
	for _, issue := range result.Issues {
		if issue.Severity == types.SeverityHigh {
			critical++
		}
	}

	e.emit(events.Event{
		Type:   events.TypeAnalysisCompleted,
		Source: "analyzer",
		Data: map[string]interface{}{
			"file_name":      result.FileName,
			"issue_count":    len(result.Issues),
			"critical_count": critical,
		},
	})
	e.broadcast("analysis_complete", messages.NewAnalysisComplete(result, duration))

	if e.knowledge != nil && len(result.Issues) > 0 {
		if err := e.knowledge.SaveAnalysis(ctx, result); err != nil {
			log.Printf("⚠️  Failed to persist analysis for %s: %v", result.FileName, err)
		}
	}
}

// GenerateSuggestions produces one suggestion per issue, reading each issue's
// file for fix context. Unreadable files degrade to template-only context.
func (e *Engine) GenerateSuggestions(ctx context.Context, issues []types.Issue) []*types.Suggestion {
	sources := make(map[string]string)
	readSource := func(fileName string) string {
		if source, ok := sources[fileName]; ok {
			return source
		}
		source := ""
		if fileName != "" {
			if content, err := utils.ReadFileSafely(fileName); err == nil {
				source = string(content)
			} else {
				log.Printf("⚠️  Could not read %s for fix context: %v", fileName, err)
			}
		}
		sources[fileName] = source
		return source
	}

	suggestions := make([]*types.Suggestion, 0, len(issues))
	for _, issue := range issues {
		generated := e.suggester.Generate(ctx, []types.Issue{issue}, readSource(issue.FileName))
		suggestions = append(suggestions, generated...)
	}

	for _, s := range suggestions {
		e.emit(events.Event{
			Type:   events.TypeSuggestionGenerated,
			Source: "suggester",
			Data: map[string]interface{}{
				"suggestion_id": s.ID,
				"file_name":     s.FileName,
				"line_number":   s.LineNumber,
			},
		})
		if e.knowledge != nil {
			if err := e.knowledge.SaveSuggestion(ctx, s); err != nil {
				log.Printf("⚠️  Failed to persist suggestion %s: %v", s.ID, err)
			}
		}
	}

	if len(suggestions) > 0 {
		e.broadcast("suggestions_ready", messages.NewSuggestionsReady(suggestions[0].FileName, suggestions))
	}
	return suggestions
}

// Suggestions returns the cached suggestions in generation order
func (e *Engine) Suggestions() []*types.Suggestion {
	return e.suggester.Cache().Snapshot()
}

// ClearSuggestionCache drops every cached suggestion
func (e *Engine) ClearSuggestionCache() {
	e.suggester.Cache().Clear()
	log.Println("🧹 Suggestion cache cleared")
}

// ApplySuggestion writes the identified suggestion back to its file
func (e *Engine) ApplySuggestion(ctx context.Context, id string) (*types.Suggestion, error) {
	suggestion, ok := e.suggester.Cache().ByID(id)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("suggestion %s", id))
	}

	if err := e.applicator.ApplySuggestion(suggestion); err != nil {
		e.emit(events.Event{
			Type:   events.TypeError,
			Source: "applicator",
			Data:   map[string]interface{}{"source": "applicator", "message": err.Error()},
		})
		return nil, err
	}

	e.emit(events.Event{
		Type:   events.TypeFixApplied,
		Source: "applicator",
		Data: map[string]interface{}{
			"suggestion_id": suggestion.ID,
			"file_name":     suggestion.FileName,
			"line_number":   suggestion.LineNumber,
		},
	})
	e.broadcast("fix_applied", messages.NewFixApplied(suggestion))
	return suggestion, nil
}

// RuleSet returns the active detection rule set
func (e *Engine) RuleSet() *types.RuleSet {
	return e.rules.RuleSet()
}

// Quarantined returns the rule IDs skipped at the last load
func (e *Engine) Quarantined() []string {
	return e.rules.Quarantined()
}

// ReloadRules re-reads the rule file and swaps the active set
func (e *Engine) ReloadRules() {
	e.rules.Reload()
}

// SearchIssues queries past findings in the knowledge store
func (e *Engine) SearchIssues(ctx context.Context, query string, limit int) ([]types.Issue, error) {
	if e.knowledge == nil {
		return nil, fmt.Errorf("knowledge store is not available")
	}
	return e.knowledge.SearchIssues(ctx, query, limit)
}

// SearchSuggestions queries past remediations in the knowledge store
func (e *Engine) SearchSuggestions(ctx context.Context, query string, limit int) ([]types.Suggestion, error) {
	if e.knowledge == nil {
		return nil, fmt.Errorf("knowledge store is not available")
	}
	return e.knowledge.SearchSuggestions(ctx, query, limit)
}

// Alerts returns the alert history
func (e *Engine) Alerts() []events.Alert {
	if e.monitor == nil {
		return nil
	}
	return e.monitor.Alerts()
}

// ActiveAlerts returns unresolved alerts
func (e *Engine) ActiveAlerts() []events.Alert {
	if e.monitor == nil {
		return nil
	}
	return e.monitor.ActiveAlerts()
}

// ResolveAlert marks one alert resolved
func (e *Engine) ResolveAlert(id string) bool {
	if e.monitor == nil {
		return false
	}
	return e.monitor.Resolve(id)
}

// Status summarizes the engine's components for the status endpoint
func (e *Engine) Status() map[string]interface{} {
	e.mu.RLock()
	semantic := e.semantic
	startedAt := e.startedAt
	e.mu.RUnlock()

	ruleSet := e.rules.RuleSet()
	status := map[string]interface{}{
		"uptime":      time.Since(startedAt).String(),
		"ruleVersion": ruleSet.Version,
		"ruleCount":   len(ruleSet.Rules),
		"quarantined": e.rules.Quarantined(),
		"suggestions": e.suggester.Cache().Len(),
		"semantic":    semantic.State().String(),
		"knowledge":   e.knowledge != nil,
		"events":      e.producer != nil && e.producer.Enabled(),
		"timestamp":   time.Now(),
	}
	if e.feed != nil {
		status["advisoryUpdated"] = e.feed.LastUpdated()
	}
	return status
}

// Shutdown flushes and releases the engine's resources
func (e *Engine) Shutdown() {
	log.Println("🛑 Shutting down engine...")
	e.broadcast("shutdown", messages.ShutdownMsg{Reason: "server stopping", Timestamp: time.Now()})

	if e.feed != nil {
		e.feed.Stop()
	}
	if e.producer != nil {
		if err := e.producer.Close(); err != nil {
			log.Printf("⚠️  Event producer close failed: %v", err)
		}
	}
	if e.knowledge != nil {
		if err := e.knowledge.Close(); err != nil {
			log.Printf("⚠️  Knowledge store close failed: %v", err)
		}
	}
	log.Println("✅ Engine stopped")
}

// emit publishes an event and feeds it to the alert monitor
func (e *Engine) emit(event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if e.producer != nil {
		if err := e.producer.Publish(context.Background(), event); err != nil {
			log.Printf("⚠️  Failed to publish %s event: %v", event.Type, err)
		}
	}
	if e.monitor != nil {
		e.monitor.Observe(event)
	}
}

// broadcast pushes a live update when a broadcaster is attached
func (e *Engine) broadcast(msgType string, data interface{}) {
	e.mu.RLock()
	b := e.broadcaster
	e.mu.RUnlock()
	if b != nil {
		b.Broadcast(msgType, data)
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"codeguardian/types"
)

// KnowledgeStore persists suggestions and issues in an embedded vector
// database so past findings stay searchable. Persistence here is best
// effort: the pipeline keeps working when the store does not.
type KnowledgeStore struct {
	client      *chromem.DB
	suggestions *chromem.Collection
	issues      *chromem.Collection
	provider    types.EmbeddingProvider
	dbPath      string
	mu          sync.RWMutex
}

// NewKnowledgeStore opens or creates the persistent vector store at dbPath
func NewKnowledgeStore(dbPath string, provider types.EmbeddingProvider) (*KnowledgeStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required for the knowledge store")
	}
	log.Printf("🔍 Knowledge store: opening %s", dbPath)

	if err := os.MkdirAll(dbPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create knowledge store directory %s: %w", dbPath, err)
	}

	// A stale LOCK from a crashed run blocks reopening; clear it first.
	lockFilePath := filepath.Join(dbPath, "LOCK")
	if _, err := os.Stat(lockFilePath); err == nil {
		if err := os.Remove(lockFilePath); err != nil {
			log.Printf("⚠️  Knowledge store: could not remove stale LOCK: %v", err)
		}
	}

	client, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	suggestionColl, err := client.GetOrCreateCollection("suggestions", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open suggestions collection: %w", err)
	}
	issueColl, err := client.GetOrCreateCollection("issues", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open issues collection: %w", err)
	}

	return &KnowledgeStore{
		client:      client,
		suggestions: suggestionColl,
		issues:      issueColl,
		provider:    provider,
		dbPath:      dbPath,
	}, nil
}

// Close releases the store. The embedded database flushes on process exit.
func (s *KnowledgeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

// SaveSuggestion upserts one suggestion document
func (s *KnowledgeStore) SaveSuggestion(ctx context.Context, suggestion *types.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := fmt.Sprintf("Remediation for %s line %d: %s",
		suggestion.FileName, suggestion.LineNumber, suggestion.IssueDescription)

	suggestionJSON, err := json.Marshal(suggestion)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	metadata := map[string]string{
		"id":              suggestion.ID,
		"fileName":        suggestion.FileName,
		"lineNumber":      strconv.Itoa(suggestion.LineNumber),
		"suggestion_data": string(suggestionJSON),
	}

	embeddings, err := s.embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("failed to embed suggestion %s: %w", suggestion.ID, err)
	}

	return s.suggestions.Add(ctx,
		[]string{suggestion.ID},
		embeddings,
		[]map[string]string{metadata},
		[]string{content},
	)
}

// SaveAnalysis upserts one document per issue in the result
func (s *KnowledgeStore) SaveAnalysis(ctx context.Context, result *types.AnalysisResult) error {
	if result == nil || len(result.Issues) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ids       []string
		documents []string
		metadatas []map[string]string
	)
	for i, issue := range result.Issues {
		ids = append(ids, fmt.Sprintf("issue-%s-%d-%d", result.FileName, issue.LineNumber, i))
		documents = append(documents, fmt.Sprintf("Issue in %s line %d (%s): %s",
			result.FileName, issue.LineNumber, issue.Severity, issue.Description))

		issueJSON, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("failed to marshal issue: %w", err)
		}
		metadatas = append(metadatas, map[string]string{
			"fileName":   result.FileName,
			"lineNumber": strconv.Itoa(issue.LineNumber),
			"severity":   string(issue.Severity),
			"issue_data": string(issueJSON),
		})
	}

	embeddings, err := s.embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed issues for %s: %w", result.FileName, err)
	}

	if err := s.issues.Add(ctx, ids, embeddings, metadatas, documents); err != nil {
		return fmt.Errorf("failed to store issues for %s: %w", result.FileName, err)
	}
	log.Printf("📊 Stored %d issues for %s", len(ids), result.FileName)
	return nil
}

// SearchIssues runs a semantic search over stored issues
func (s *KnowledgeStore) SearchIssues(ctx context.Context, query string, limit int) ([]types.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.query(ctx, s.issues, query, limit)
	if err != nil {
		return nil, err
	}

	var issues []types.Issue
	for _, res := range results {
		data, ok := res.Metadata["issue_data"]
		if !ok {
			continue
		}
		var issue types.Issue
		if err := json.Unmarshal([]byte(data), &issue); err == nil {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// SearchSuggestions runs a semantic search over stored suggestions
func (s *KnowledgeStore) SearchSuggestions(ctx context.Context, query string, limit int) ([]types.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.query(ctx, s.suggestions, query, limit)
	if err != nil {
		return nil, err
	}

	var suggestions []types.Suggestion
	for _, res := range results {
		data, ok := res.Metadata["suggestion_data"]
		if !ok {
			continue
		}
		var suggestion types.Suggestion
		if err := json.Unmarshal([]byte(data), &suggestion); err == nil {
			suggestions = append(suggestions, suggestion)
		}
	}
	return suggestions, nil
}

// query searches one collection, clamping the result count to what the
// collection actually holds; asking for more than exists is an error in the
// underlying store, not in the caller.
func (s *KnowledgeStore) query(ctx context.Context, coll *chromem.Collection, query string, limit int) ([]chromem.Result, error) {
	count := coll.Count()
	if count == 0 {
		return nil, nil
	}
	if limit < 1 || limit > count {
		limit = count
	}

	embeddings, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := coll.QueryEmbedding(ctx, embeddings[0], limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return results, nil
}

// embed converts provider vectors to the store's float32 layout
func (s *KnowledgeStore) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	vecs64, err := s.provider.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(vecs64))
	for i, vec := range vecs64 {
		vecs[i] = make([]float32, len(vec))
		for j, v := range vec {
			vecs[i][j] = float32(v)
		}
	}
	return vecs, nil
}

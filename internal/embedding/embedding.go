package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
)

// embeddingDim is the dimension of locally generated fallback embeddings.
const embeddingDim = 128

// Config represents embedding backend configuration
type Config struct {
	Endpoint string
	APIKey   string
	UseLocal bool
}

// Service generates embeddings for semantic matching. It calls the external
// embedding service first and falls back to local embeddings on any failure,
// so Embed only errors when both paths fail.
type Service struct {
	config     Config
	httpClient *http.Client
}

// NewService creates a new embedding service
func NewService(config Config) *Service {
	return &Service{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Embed generates embeddings for the given texts. Implements the
// embedding capability used by the semantic detector and knowledge store.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	embeddings, err := s.externalEmbeddings(ctx, texts)
	if err == nil {
		return embeddings, nil
	}

	if !s.config.UseLocal {
		log.Printf("⚠️  External embedding service failed (%v), falling back to local embeddings", err)
	}

	return localEmbeddings(texts)
}

// Validate probes the backend with a test text. Used by the semantic
// detector's async readiness check.
func (s *Service) Validate(ctx context.Context) error {
	_, err := s.Embed(ctx, []string{"embedding service validation probe"})
	if err != nil {
		return fmt.Errorf("embedding service validation failed: %w", err)
	}
	return nil
}

// ChromemFunc adapts the service to a chromem-compatible embedding function
func (s *Service) ChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embeddings, err := s.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}

		if len(embeddings) == 0 || len(embeddings[0]) == 0 {
			return nil, fmt.Errorf("no embeddings generated")
		}

		embedding32 := make([]float32, len(embeddings[0]))
		for i, val := range embeddings[0] {
			embedding32[i] = float32(val)
		}

		return embedding32, nil
	}
}

// externalEmbeddings calls the external embedding service
func (s *Service) externalEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if s.config.UseLocal {
		return nil, fmt.Errorf("external embeddings disabled via configuration")
	}
	if s.config.Endpoint == "" {
		return nil, fmt.Errorf("no embedding endpoint configured")
	}

	reqBody := map[string]interface{}{
		"texts": texts,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("embedding service authentication failed (401 Unauthorized)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Success    bool        `json:"success"`
		Embeddings [][]float64 `json:"embeddings"`
		Error      string      `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("embedding service error: %s", response.Error)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d embeddings for %d texts", len(response.Embeddings), len(texts))
	}

	return response.Embeddings, nil
}

// localEmbeddings creates character-frequency embeddings as fallback.
// Crude, but deterministic and dependency-free, which keeps semantic
// matching alive when the external service is unreachable.
func localEmbeddings(texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embedding := make([]float64, embeddingDim)

		embedding[0] = float64(len(text)) / 1000.0

		charCounts := make(map[rune]int)
		for _, char := range text {
			charCounts[char]++
		}

		featureChars := []rune{'a', 'e', 'i', 'o', 'u', ' ', '.', ',', '\n',
			'_', '(', ')', '"', '=', 's', 't', 'r', 'n', 'd', 'p', 'w', 'k', 'c'}
		for j, char := range featureChars {
			if j+1 < embeddingDim {
				embedding[j+1] = float64(charCounts[char]) / float64(len(text)+1)
			}
		}

		// Rolling hash features over the remaining dimensions so distinct
		// texts do not collapse onto identical vectors
		hash := 0
		for _, char := range text {
			hash = (hash*31 + int(char)) % 1000003
		}
		for j := len(featureChars) + 1; j < embeddingDim; j++ {
			hash = (hash*31 + j) % 1000003
			embedding[j] = float64(hash%100) / 100.0
		}

		embeddings[i] = embedding
	}

	return embeddings, nil
}

// Similarity calculates cosine similarity between two embeddings
func Similarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// PreprocessText normalizes text before embedding
func PreprocessText(text string) string {
	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	return strings.TrimSpace(text)
}

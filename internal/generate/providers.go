package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	gollm "github.com/guiperry/gollm_cerebras"
	gollmconfig "github.com/guiperry/gollm_cerebras/config"
	"github.com/guiperry/gollm_cerebras/llm"
	"google.golang.org/api/option"

	"codeguardian/internal/config"
)

// Provider is one configured text generation backend
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// gollmProvider routes generation through the gollm multi-provider client
type gollmProvider struct {
	name     string
	instance llm.LLM
}

func newGollmProvider(providerName string, creds config.ProviderCredentials) (*gollmProvider, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for %s", providerName)
	}

	opts := []gollmconfig.ConfigOption{
		gollmconfig.SetProvider(providerName),
		gollmconfig.SetAPIKey(creds.APIKey),
		gollmconfig.SetModel(creds.Model),
		gollmconfig.SetMaxTokens(creds.MaxTokens),
	}

	llmInstance, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s LLM instance: %w", providerName, err)
	}

	initialized, ok := llmInstance.(llm.LLM)
	if !ok {
		return nil, fmt.Errorf("initialized %s instance does not implement llm.LLM", providerName)
	}

	return &gollmProvider{name: providerName, instance: initialized}, nil
}

func (p *gollmProvider) Name() string {
	return p.name
}

func (p *gollmProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.instance.Generate(ctx, llm.NewPrompt(prompt))
}

// geminiProvider talks to Gemini through the native SDK, which gives us
// JSON response mode instead of prompt-level coaxing
type geminiProvider struct {
	apiKey    string
	model     string
	maxTokens int
}

func newGeminiProvider(creds config.ProviderCredentials) (*geminiProvider, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for gemini")
	}
	return &geminiProvider{
		apiKey:    creds.APIKey,
		model:     creds.Model,
		maxTokens: creds.MaxTokens,
	}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	if p.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.maxTokens))
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}

	if builder.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text candidates")
	}
	return builder.String(), nil
}

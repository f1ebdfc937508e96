package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"codeguardian/internal/config"
)

// promptTokenBudget caps outgoing prompts so the smallest context window
// among our providers still has room to respond.
const promptTokenBudget = 6000

// minPromptTokens is the floor left for the caller's prompt after the
// response contract takes its share.
const minPromptTokens = 256

// Engine generates remediation code through an ordered provider chain.
// It implements types.FixGenerator.
type Engine struct {
	providers []Provider
	model     string
	contract  string
	budget    int
}

// NewEngine builds the provider chain from configuration. The configured
// fix provider goes first; everything else with credentials becomes a
// fallback.
func NewEngine(cfg config.AIProviderConfig) (*Engine, error) {
	var providers []Provider

	addCerebras := func() {
		provider, err := newGollmProvider("cerebras", cfg.Cerebras)
		if err != nil {
			log.Printf("⚠️  Skipping cerebras provider: %v", err)
			return
		}
		providers = append(providers, provider)
	}
	addGemini := func() {
		provider, err := newGeminiProvider(cfg.Gemini)
		if err != nil {
			log.Printf("⚠️  Skipping gemini provider: %v", err)
			return
		}
		providers = append(providers, provider)
	}

	if cfg.FixProvider == "gemini" {
		addGemini()
		addCerebras()
	} else {
		addCerebras()
		addGemini()
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no fix providers could be initialized")
	}

	names := make([]string, len(providers))
	for i, provider := range providers {
		names[i] = provider.Name()
	}
	log.Printf("🤖 Fix engine ready with provider chain: %s", strings.Join(names, " -> "))

	return &Engine{
		providers: providers,
		model:     modelForEstimation(cfg),
		contract:  responseContract(),
		budget:    promptTokenBudget,
	}, nil
}

// modelForEstimation picks the model name used for token counting
func modelForEstimation(cfg config.AIProviderConfig) string {
	if cfg.FixProvider == "gemini" && cfg.Gemini.Model != "" {
		return cfg.Gemini.Model
	}
	if cfg.Cerebras.Model != "" {
		return cfg.Cerebras.Model
	}
	return "cl100k_base"
}

// GenerateFix asks the provider chain for corrected code. Providers are
// tried in order; transient and capacity errors move on to the next one,
// anything else stops the chain.
func (e *Engine) GenerateFix(ctx context.Context, prompt string) (string, error) {
	outgoing := e.composePrompt(prompt)

	var lastErr error
	for _, provider := range e.providers {
		reply, err := provider.Generate(ctx, outgoing)
		if err == nil {
			code := parseFixResponse(reply)
			if code == "" {
				lastErr = fmt.Errorf("%s returned an empty fix", provider.Name())
				continue
			}
			return code, nil
		}

		log.Printf("⚠️  Provider %s failed: %v", provider.Name(), err)
		if !shouldFailover(err) {
			return "", fmt.Errorf("provider %s failed: %w", provider.Name(), err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("all fix providers failed: %w", lastErr)
}

// composePrompt appends the response contract and trims the caller's
// prompt so the whole message fits the token budget
func (e *Engine) composePrompt(prompt string) string {
	available := e.budget - estimateTokens(e.contract, e.model)
	if available < minPromptTokens {
		available = minPromptTokens
	}
	return truncateToTokens(prompt, e.model, available) + "\n\n" + e.contract
}

// shouldFailover decides whether an error warrants trying the next
// provider in the chain
func shouldFailover(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()

	if strings.Contains(errStr, "context_length_exceeded") || strings.Contains(errStr, "token limit") {
		return true
	}
	if strings.Contains(errStr, "status code 5") || strings.Contains(errStr, "Internal Server Error") || strings.Contains(errStr, "Service Unavailable") {
		return true
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") || strings.Contains(errStr, "connection refused") {
		return true
	}
	if strings.Contains(errStr, "empty fix") || strings.Contains(errStr, "no text candidates") {
		return true
	}
	return false
}

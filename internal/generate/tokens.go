package generate

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// modelToEncoding maps model name fragments to tiktoken encodings. Every
// provider we route to speaks a cl100k-compatible vocabulary.
var modelToEncoding = map[string]string{
	"cerebras": "cl100k_base",
	"llama":    "cl100k_base",
	"gemini":   "cl100k_base",
	"gpt-4":    "cl100k_base",
	"gpt-3.5":  "cl100k_base",
}

// encodingForModel returns the tiktoken encoding for a model name
func encodingForModel(model string) (*tiktoken.Tiktoken, error) {
	lowerModel := strings.ToLower(model)

	if encodingName, ok := tiktoken.MODEL_TO_ENCODING[lowerModel]; ok {
		return tiktoken.GetEncoding(encodingName)
	}
	for fragment, encodingName := range modelToEncoding {
		if strings.Contains(lowerModel, fragment) {
			return tiktoken.GetEncoding(encodingName)
		}
	}
	return tiktoken.GetEncoding("cl100k_base")
}

// estimateTokens counts prompt tokens, falling back to a character-based
// estimate when the encoding is unavailable
func estimateTokens(content string, model string) int {
	enc, err := encodingForModel(model)
	if err == nil {
		return len(enc.Encode(content, nil, nil))
	}
	return (len(content) / 4) + 5
}

// truncateToTokens cuts content down to at most budget tokens
func truncateToTokens(content string, model string, budget int) string {
	if budget < 1 {
		return ""
	}

	enc, err := encodingForModel(model)
	if err != nil {
		// Character fallback: 1 token is roughly 4 characters.
		maxChars := budget * 4
		if len(content) <= maxChars {
			return content
		}
		for maxChars > 0 && !utf8.RuneStart(content[maxChars]) {
			maxChars--
		}
		log.Printf("⚠️  Prompt exceeds token budget, truncating to ~%d tokens", budget)
		return content[:maxChars]
	}

	tokens := enc.Encode(content, nil, nil)
	if len(tokens) <= budget {
		return content
	}
	log.Printf("⚠️  Prompt is %d tokens, truncating to %d", len(tokens), budget)
	return enc.Decode(tokens[:budget])
}

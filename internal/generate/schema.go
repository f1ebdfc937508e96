package generate

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// FixResponse is the structured reply we ask every provider for
type FixResponse struct {
	Code        string `json:"code" jsonschema:"title=code,description=The corrected source code with the vulnerability removed"`
	Explanation string `json:"explanation,omitempty" jsonschema:"title=explanation,description=One sentence describing the change"`
}

// responseContract renders the instructions appended to every prompt,
// including the reflected JSON schema of FixResponse
func responseContract() string {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(&FixResponse{})

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		// The schema is reflected from a fixed struct; this cannot
		// fail at runtime, but degrade to prose instructions anyway.
		return "Respond with a JSON object containing a \"code\" field holding the corrected code."
	}

	var builder strings.Builder
	builder.WriteString("Respond with a single JSON object matching this schema, and nothing else:\n")
	builder.Write(schemaJSON)
	return builder.String()
}

// parseFixResponse extracts the corrected code from a provider reply.
// Providers that honor the contract send JSON; ones that ignore it tend to
// send fenced or bare code, which we pass through.
func parseFixResponse(raw string) string {
	cleaned := stripFences(raw)

	var response FixResponse
	if err := json.Unmarshal([]byte(cleaned), &response); err == nil && response.Code != "" {
		return response.Code
	}
	return cleaned
}

// stripFences removes a surrounding markdown code fence if present
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (which may carry a language tag) and a
	// closing fence when one exists.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

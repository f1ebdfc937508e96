package suggest

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"codeguardian/types"
)

// MockFixGenerator mocks the FixGenerator capability for testing
type MockFixGenerator struct {
	mock.Mock
}

func (m *MockFixGenerator) GenerateFix(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// panicFixGenerator simulates a catastrophic generator failure
type panicFixGenerator struct{}

func (panicFixGenerator) GenerateFix(context.Context, string) (string, error) {
	panic("generator blew up")
}

func loggingIssue() types.Issue {
	return types.Issue{
		FileName:      "Service.java",
		LineNumber:    2,
		Description:   "Sensitive data (Credentials) referenced in logging call",
		Severity:      types.SeverityHigh,
		Message:       `Logging call references "password"`,
		SuggestedFix:  `Remove "password" from the log statement: never log credentials; use masked values`,
		DiagnosticRef: "logging:Credentials",
	}
}

const serviceSource = "public void login(User user) {\n" +
	"    LOGGER.info(\"User password: \" + user.getPassword());\n" +
	"}\n"

func TestGenerate_CacheHitReturnsSamePointerWithoutResynthesis(t *testing.T) {
	fixer := &MockFixGenerator{}
	fixer.On("GenerateFix", mock.Anything, mock.Anything).Return("LOGGER.info(\"<redacted>\");", nil)
	generator := NewGenerator(NewCache(), fixer)
	issue := loggingIssue()

	first := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)
	second := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0], "cache hit must return the identical pointer")
	fixer.AssertNumberOfCalls(t, "GenerateFix", 1)
}

func TestGenerate_SequentialInIssueOrder(t *testing.T) {
	generator := NewGenerator(NewCache(), nil)
	issues := []types.Issue{
		{FileName: "a.java", LineNumber: 1, Description: "first", SuggestedFix: "fix one"},
		{FileName: "a.java", LineNumber: 5, Description: "second", SuggestedFix: "fix two"},
		{FileName: "b.java", LineNumber: 2, Description: "third", SuggestedFix: "fix three"},
	}

	suggestions := generator.Generate(context.Background(), issues, "line\nline\nline\nline\nline")

	require.Len(t, suggestions, 3)
	assert.Equal(t, "first", suggestions[0].IssueDescription)
	assert.Equal(t, "second", suggestions[1].IssueDescription)
	assert.Equal(t, "third", suggestions[2].IssueDescription)
}

func TestGenerate_TemplateByCategory(t *testing.T) {
	tests := []struct {
		name     string
		issue    types.Issue
		expected string
	}{
		{
			name: "sql injection gets prepared statement",
			issue: types.Issue{
				FileName: "Dao.java", LineNumber: 1,
				Description:  "Possible SQL injection via string concatenation",
				SuggestedFix: "Use a parameterized query",
			},
			expected: "prepareStatement",
		},
		{
			name: "hardcoded secret gets environment read",
			issue: types.Issue{
				FileName: "Config.java", LineNumber: 1,
				Description:  "Hardcoded secret in source",
				SuggestedFix: "Move the secret to configuration",
			},
			expected: "System.getenv",
		},
		{
			name: "sensitive logging gets redaction",
			issue: types.Issue{
				FileName: "Service.java", LineNumber: 1,
				Description:   "Sensitive data (Credentials) referenced in logging call",
				SuggestedFix:  "never log credentials; use masked values",
				DiagnosticRef: "logging:Credentials",
			},
			expected: "<redacted>",
		},
		{
			name: "unknown category carries fix as comment",
			issue: types.Issue{
				FileName: "Util.java", LineNumber: 1,
				Description:  "Deeply nested control flow",
				SuggestedFix: "Extract helper methods",
			},
			expected: "// FIX: Extract helper methods",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := NewGenerator(NewCache(), nil)

			suggestions := generator.Generate(context.Background(), []types.Issue{tt.issue}, "some code")

			require.Len(t, suggestions, 1)
			assert.Contains(t, suggestions[0].GeneratedCode, tt.expected)
		})
	}
}

func TestGenerate_FixerErrorKeepsTemplate(t *testing.T) {
	fixer := &MockFixGenerator{}
	fixer.On("GenerateFix", mock.Anything, mock.Anything).Return("", errors.New("provider down"))
	generator := NewGenerator(NewCache(), fixer)

	suggestions := generator.Generate(context.Background(), []types.Issue{loggingIssue()}, serviceSource)

	require.Len(t, suggestions, 1)
	assert.Contains(t, suggestions[0].GeneratedCode, "<redacted>", "template output survives refinement failure")
	fixer.AssertExpectations(t)
}

func TestGenerate_FixerOutputStripsFences(t *testing.T) {
	fixer := &MockFixGenerator{}
	fixer.On("GenerateFix", mock.Anything, mock.Anything).
		Return("```java\nLOGGER.info(\"done\");\n```", nil)
	generator := NewGenerator(NewCache(), fixer)

	suggestions := generator.Generate(context.Background(), []types.Issue{loggingIssue()}, serviceSource)

	require.Len(t, suggestions, 1)
	assert.Equal(t, `LOGGER.info("done");`, suggestions[0].GeneratedCode)
}

func TestGenerate_PanicDegradesToFallback(t *testing.T) {
	generator := NewGenerator(NewCache(), panicFixGenerator{})
	issue := loggingIssue()

	first := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)
	second := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)

	require.Len(t, first, 1)
	assert.Contains(t, first[0].GeneratedCode, "unavailable")
	assert.Equal(t, issue.SuggestedFix, first[0].SuggestedFix)
	assert.Same(t, first[0], second[0], "fallback suggestions cache like any other")
}

func TestGenerate_CapturesOriginalCodeAndWindow(t *testing.T) {
	generator := NewGenerator(NewCache(), nil)
	issue := loggingIssue()

	suggestions := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)

	require.Len(t, suggestions, 1)
	assert.Contains(t, suggestions[0].OriginalCode, "getPassword")
	assert.Equal(t, 2, suggestions[0].LineNumber)
	assert.Equal(t, "Service.java", suggestions[0].FileName)
}

func TestGenerate_OutOfRangeLineStillSucceeds(t *testing.T) {
	generator := NewGenerator(NewCache(), nil)
	issue := loggingIssue()
	issue.LineNumber = 99

	suggestions := generator.Generate(context.Background(), []types.Issue{issue}, "only one line")

	require.Len(t, suggestions, 1)
	assert.Empty(t, suggestions[0].OriginalCode)
	assert.NotEmpty(t, suggestions[0].GeneratedCode)
}

func TestGenerate_ConcurrentSameKeySingleWinner(t *testing.T) {
	generator := NewGenerator(NewCache(), nil)
	issue := loggingIssue()

	const workers = 8
	results := make([]*types.Suggestion, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := generator.Generate(context.Background(), []types.Issue{issue}, serviceSource)
			results[i] = out[0]
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, results[0], results[i], "one writer wins per key")
	}
	assert.Equal(t, 1, generator.Cache().Len())
}

func TestContextWindow(t *testing.T) {
	source := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8"

	window, original := contextWindow(source, 5)
	assert.Equal(t, "l5", original)
	assert.Equal(t, "l2\nl3\nl4\nl5\nl6\nl7\nl8", window)

	window, original = contextWindow(source, 1)
	assert.Equal(t, "l1", original)
	assert.Equal(t, "l1\nl2\nl3\nl4", window, "window clamps at the top")

	window, original = contextWindow(source, 8)
	assert.Equal(t, "l8", original)
	assert.Equal(t, "l5\nl6\nl7\nl8", window, "window clamps at the bottom")
}

func TestCacheKey(t *testing.T) {
	issue := loggingIssue()

	key1 := CacheKey(issue)
	key2 := CacheKey(issue)
	assert.Equal(t, key1, key2)

	changed := issue
	changed.Description = "a different finding"
	assert.NotEqual(t, key1, CacheKey(changed))

	assert.Regexp(t, regexp.MustCompile(`^Service\.java:2:[0-9a-f]{8}$`), key1)
}

func TestSuggestionID_ContentDerived(t *testing.T) {
	issue := loggingIssue()

	assert.Equal(t, suggestionID(issue), suggestionID(issue))

	moved := issue
	moved.LineNumber = 3
	assert.NotEqual(t, suggestionID(issue), suggestionID(moved))
	assert.Regexp(t, regexp.MustCompile(`^sug-[0-9a-f]{16}$`), suggestionID(issue))
}

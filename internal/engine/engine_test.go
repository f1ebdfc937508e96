package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeguardian/internal/fix"
	"codeguardian/internal/rules"
	"codeguardian/internal/suggest"
	"codeguardian/types"
)

// recordingBroadcaster captures broadcasts for assertions
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) Broadcast(msgType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, msgType)
}

func (b *recordingBroadcaster) seen(msgType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.types {
		if t == msgType {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T) (*Engine, *recordingBroadcaster) {
	t.Helper()

	ruleStore := rules.NewStore(filepath.Join(t.TempDir(), "rules.json"))
	ruleStore.Load()

	eng, err := New(Config{
		Rules:      ruleStore,
		Suggester:  suggest.NewGenerator(suggest.NewCache(), nil),
		Applicator: fix.NewApplicator(),
	})
	require.NoError(t, err)

	broadcaster := &recordingBroadcaster{}
	eng.SetBroadcaster(broadcaster)
	return eng, broadcaster
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAnalyzeSourceStampsFileName(t *testing.T) {
	eng, broadcaster := newTestEngine(t)

	source := `String apiKey = "sk-12345";` + "\n" + `password = "hunter2"`
	result := eng.AnalyzeSource(context.Background(), "src/Config.java", source)

	require.NotEmpty(t, result.Issues)
	assert.Equal(t, "src/Config.java", result.FileName)
	for _, issue := range result.Issues {
		assert.Equal(t, "src/Config.java", issue.FileName)
	}
	assert.True(t, broadcaster.seen("analysis_complete"))
}

func TestAnalyzeDirectory(t *testing.T) {
	eng, _ := newTestEngine(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.go"),
		[]byte(`password = "hunter2"`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("not code\n"), 0644))

	results, err := eng.AnalyzeDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.HasSuffix(results[0].FileName, "app.go"))
	for _, issue := range results[0].Issues {
		assert.Equal(t, results[0].FileName, issue.FileName)
	}
}

func TestGenerateSuggestionsCached(t *testing.T) {
	eng, _ := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "app.go")
	require.NoError(t, os.WriteFile(path, []byte(`password = "hunter2"`+"\n"), 0644))

	issue := types.Issue{
		FileName:    path,
		LineNumber:  1,
		Description: "Credentials must not be hardcoded in source",
		Severity:    types.SeverityHigh,
	}

	first := eng.GenerateSuggestions(context.Background(), []types.Issue{issue})
	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, `password = "hunter2"`, first[0].OriginalCode)

	second := eng.GenerateSuggestions(context.Background(), []types.Issue{issue})
	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0], "repeated requests return the cached pointer")
	assert.Equal(t, 1, len(eng.Suggestions()))
}

func TestApplySuggestion(t *testing.T) {
	eng, broadcaster := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "app.go")
	require.NoError(t, os.WriteFile(path, []byte(`password = "hunter2"`+"\nnext line\n"), 0644))

	issue := types.Issue{
		FileName:    path,
		LineNumber:  1,
		Description: "Credentials must not be hardcoded in source",
		Severity:    types.SeverityHigh,
	}
	suggestions := eng.GenerateSuggestions(context.Background(), []types.Issue{issue})
	require.Len(t, suggestions, 1)

	applied, err := eng.ApplySuggestion(context.Background(), suggestions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, suggestions[0].ID, applied.ID)
	assert.True(t, broadcaster.seen("fix_applied"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(content), "\n")
	assert.Equal(t, suggestions[0].GeneratedCode, lines[0])
	assert.Equal(t, "next line", lines[1])
}

func TestApplySuggestionUnknownID(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.ApplySuggestion(context.Background(), "sug-does-not-exist")
	assert.Error(t, err)
}

func TestClearSuggestionCache(t *testing.T) {
	eng, _ := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "app.go")
	require.NoError(t, os.WriteFile(path, []byte("log.info(password)\n"), 0644))

	issue := types.Issue{FileName: path, LineNumber: 1, Description: "sensitive logging"}
	suggestions := eng.GenerateSuggestions(context.Background(), []types.Issue{issue})
	require.Len(t, suggestions, 1)

	eng.ClearSuggestionCache()
	assert.Empty(t, eng.Suggestions())

	_, err := eng.ApplySuggestion(context.Background(), suggestions[0].ID)
	assert.Error(t, err, "cleared IDs stop resolving")
}

func TestStatusShape(t *testing.T) {
	eng, _ := newTestEngine(t)

	status := eng.Status()
	assert.Contains(t, status, "ruleVersion")
	assert.Contains(t, status, "ruleCount")
	assert.Contains(t, status, "semantic")
	assert.Equal(t, false, status["knowledge"])
	assert.Equal(t, false, status["events"])
}

func TestSearchWithoutKnowledgeStore(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.SearchIssues(context.Background(), "password", 5)
	assert.Error(t, err)
	_, err = eng.SearchSuggestions(context.Background(), "password", 5)
	assert.Error(t, err)
}

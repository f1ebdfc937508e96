package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyzeFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTestFile(t, tmpDir, "Leaky.java",
		`LOGGER.info("User password: " + user.getPassword());`)
	analyzer := newTestAnalyzer(passwordRuleSet())

	result, err := analyzer.AnalyzeFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, path, result.FileName, "file name assigned after analysis")
	assert.NotEmpty(t, result.Issues)
}

func TestAnalyzeFile_MissingFile(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	_, err := analyzer.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "absent.go"))

	assert.Error(t, err)
}

func TestAnalyzeDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "b.java", `logger.info("password");`)
	writeTestFile(t, tmpDir, "a.py", `print("session cookie: " + cookie)`)
	writeTestFile(t, tmpDir, "README.md", "password everywhere") // not a code file
	writeTestFile(t, tmpDir, filepath.Join("node_modules", "dep.js"), `console.log(password)`)
	writeTestFile(t, tmpDir, filepath.Join(".git", "hook.py"), `print(password)`)
	analyzer := newTestAnalyzer(passwordRuleSet())

	results, err := analyzer.AnalyzeDirectory(context.Background(), tmpDir)

	require.NoError(t, err)
	require.Len(t, results, 2, "docs and skipped directories stay out")
	assert.Equal(t, filepath.Join(tmpDir, "a.py"), results[0].FileName, "results sorted by file name")
	assert.Equal(t, filepath.Join(tmpDir, "b.java"), results[1].FileName)
	for _, result := range results {
		assert.NotEmpty(t, result.Issues)
	}
}

func TestAnalyzeDirectory_EmptyTree(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	results, err := analyzer.AnalyzeDirectory(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyzeDirectory_MissingRoot(t *testing.T) {
	analyzer := newTestAnalyzer(passwordRuleSet())

	_, err := analyzer.AnalyzeDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
}

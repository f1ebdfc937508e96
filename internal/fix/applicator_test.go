package fix

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "codeguardian/internal/errors"
	"codeguardian/types"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Service.java")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestApply_ReplacesExactlyOneLine(t *testing.T) {
	path := writeFixture(t, "first\nsecond\nthird\n")
	applicator := NewApplicator()

	err := applicator.Apply(path, 2, "patched")

	require.NoError(t, err)
	assert.Equal(t, "first\npatched\nthird\n", readBack(t, path))
}

func TestApply_PreservesMissingTrailingNewline(t *testing.T) {
	path := writeFixture(t, "first\nsecond\nthird")
	applicator := NewApplicator()

	err := applicator.Apply(path, 3, "patched")

	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\npatched", readBack(t, path))
}

func TestApply_MultiLineReplacement(t *testing.T) {
	path := writeFixture(t, "a\nb\nc\n")
	applicator := NewApplicator()

	err := applicator.Apply(path, 2, "b1\nb2")

	require.NoError(t, err)
	assert.Equal(t, "a\nb1\nb2\nc\n", readBack(t, path))
}

func TestApply_OutOfRangeLeavesFileUnchanged(t *testing.T) {
	original := "one\ntwo\n"
	path := writeFixture(t, original)
	applicator := NewApplicator()

	tests := []int{0, -1, 3, 100}
	for _, line := range tests {
		t.Run(strconv.Itoa(line), func(t *testing.T) {
			err := applicator.Apply(path, line, "nope")

			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
			assert.Equal(t, original, readBack(t, path))
		})
	}
}

func TestApply_MissingFile(t *testing.T) {
	applicator := NewApplicator()

	err := applicator.Apply(filepath.Join(t.TempDir(), "gone.java"), 1, "text")

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}

func TestApplySuggestion_Success(t *testing.T) {
	path := writeFixture(t, "header\nLOGGER.info(password);\nfooter\n")
	applicator := NewApplicator()

	err := applicator.ApplySuggestion(&types.Suggestion{
		ID:            "sug-1",
		FileName:      path,
		LineNumber:    2,
		OriginalCode:  "LOGGER.info(password);",
		GeneratedCode: `LOGGER.info("<redacted>");`,
	})

	require.NoError(t, err)
	assert.Equal(t, "header\nLOGGER.info(\"<redacted>\");\nfooter\n", readBack(t, path))
}

func TestApplySuggestion_StaleLineContent(t *testing.T) {
	original := "header\nsomething else entirely\nfooter\n"
	path := writeFixture(t, original)
	applicator := NewApplicator()

	err := applicator.ApplySuggestion(&types.Suggestion{
		ID:            "sug-1",
		FileName:      path,
		LineNumber:    2,
		OriginalCode:  "LOGGER.info(password);",
		GeneratedCode: "patched",
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeConflict, appErr.Type)
	assert.Equal(t, original, readBack(t, path), "failed apply leaves the document unchanged")
}

func TestApplySuggestion_NoOriginalCodeSkipsStaleCheck(t *testing.T) {
	path := writeFixture(t, "header\nLOGGER.info(password);\nfooter\n")
	applicator := NewApplicator()

	// Fallback suggestions carry no source context, so only the line
	// range gates the apply.
	err := applicator.ApplySuggestion(&types.Suggestion{
		ID:            "sug-1",
		FileName:      path,
		LineNumber:    2,
		GeneratedCode: "// FIXME: review before shipping",
	})

	require.NoError(t, err)
	assert.Equal(t, "header\n// FIXME: review before shipping\nfooter\n", readBack(t, path))
}

func TestApplySuggestion_NoOriginalCodeStillValidatesRange(t *testing.T) {
	original := "only line\n"
	path := writeFixture(t, original)
	applicator := NewApplicator()

	err := applicator.ApplySuggestion(&types.Suggestion{
		ID:            "sug-1",
		FileName:      path,
		LineNumber:    9,
		GeneratedCode: "patched",
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, original, readBack(t, path))
}

func TestApplySuggestion_DocumentShrank(t *testing.T) {
	original := "only line\n"
	path := writeFixture(t, original)
	applicator := NewApplicator()

	err := applicator.ApplySuggestion(&types.Suggestion{
		ID:            "sug-1",
		FileName:      path,
		LineNumber:    5,
		OriginalCode:  "was line five",
		GeneratedCode: "patched",
	})

	require.Error(t, err)
	assert.Equal(t, original, readBack(t, path))
}

func TestApplySuggestion_NilSuggestion(t *testing.T) {
	applicator := NewApplicator()

	err := applicator.ApplySuggestion(nil)

	assert.Error(t, err)
}

func TestApply_ConcurrentAppliesSerialize(t *testing.T) {
	const lines = 10
	content := ""
	for i := 0; i < lines; i++ {
		content += "line\n"
	}
	path := writeFixture(t, content)
	applicator := NewApplicator()

	var wg sync.WaitGroup
	for i := 1; i <= lines; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			assert.NoError(t, applicator.Apply(path, line, "edited "+strconv.Itoa(line)))
		}(i)
	}
	wg.Wait()

	got := strings.Split(readBack(t, path), "\n")
	require.GreaterOrEqual(t, len(got), lines)
	for i := 1; i <= lines; i++ {
		assert.Equal(t, "edited "+strconv.Itoa(i), got[i-1], "no concurrent apply may be lost")
	}
}

func TestSpliceLine_EmptyFile(t *testing.T) {
	updated, original, err := spliceLine("", 1, "new content")

	require.NoError(t, err)
	assert.Equal(t, "", original)
	assert.Equal(t, "new content", updated)
}

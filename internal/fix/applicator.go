package fix

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"codeguardian/internal/errors"
	"codeguardian/internal/utils"
	"codeguardian/types"
)

// Applicator applies line-level fixes to files on disk. Writes go through a
// temp file, fsync and rename, and a per-file lock serializes concurrent
// applies to the same path.
type Applicator struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewApplicator creates a fix applicator
func NewApplicator() *Applicator {
	return &Applicator{locks: make(map[string]*sync.Mutex)}
}

// fileLock returns the lock guarding one path, creating it on first use
func (a *Applicator) fileLock(path string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[path] = lock
	}
	return lock
}

// Apply replaces exactly one 1-based line of the file with newText, leaving
// every other line byte for byte intact and preserving whether the file ends
// in a newline. A vanished file or an out-of-range line is reported to the
// caller; any failure leaves the file unchanged.
func (a *Applicator) Apply(fileName string, lineNumber int, newText string) error {
	lock := a.fileLock(fileName)
	lock.Lock()
	defer lock.Unlock()

	return a.applyLocked(fileName, lineNumber, newText, nil)
}

// ApplySuggestion applies a generated suggestion, refusing when the document
// has drifted since the suggestion was made. Staleness checks compare the
// current line count and, when the suggestion recorded the original line,
// that line's content. Suggestions made without source context, like
// fallbacks for unreadable files, skip the content compare.
func (a *Applicator) ApplySuggestion(s *types.Suggestion) error {
	if s == nil {
		return errors.NewValidationError("suggestion is required", nil)
	}

	lock := a.fileLock(s.FileName)
	lock.Lock()
	defer lock.Unlock()

	var expect *string
	if s.OriginalCode != "" {
		expect = &s.OriginalCode
	}
	err := a.applyLocked(s.FileName, s.LineNumber, s.GeneratedCode, expect)
	if err != nil {
		return err
	}
	log.Printf("✅ Applied suggestion %s to %s:%d", s.ID, s.FileName, s.LineNumber)
	return nil
}

// applyLocked does the read-splice-write under the caller-held file lock.
// expectOriginal, when non-nil, is the line content the caller based its
// change on; a mismatch means the document is stale.
func (a *Applicator) applyLocked(fileName string, lineNumber int, newText string, expectOriginal *string) error {
	info, err := os.Stat(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("file %s", fileName))
		}
		return errors.NewInternalError(fmt.Sprintf("failed to stat %s", fileName), err)
	}

	content, err := os.ReadFile(fileName)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to read %s", fileName), err)
	}

	updated, original, err := spliceLine(string(content), lineNumber, newText)
	if err != nil {
		return err
	}

	if expectOriginal != nil && original != *expectOriginal {
		return errors.NewConflictError(
			fmt.Sprintf("line %d of %s changed since the suggestion was generated", lineNumber, fileName), nil)
	}

	if err := utils.WriteFileAtomic(fileName, []byte(updated), info.Mode().Perm()); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to write %s", fileName), err)
	}
	return nil
}

// spliceLine replaces the 1-based line and returns the updated content plus
// the line that was replaced. The trailing-newline shape of the input is
// preserved in the output.
func spliceLine(content string, lineNumber int, newText string) (updated, original string, err error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	if hadTrailingNewline {
		lines = lines[:len(lines)-1]
	}

	if lineNumber < 1 || lineNumber > len(lines) {
		return "", "", errors.NewValidationError(
			fmt.Sprintf("line %d is out of range, file has %d lines", lineNumber, len(lines)), nil)
	}

	original = lines[lineNumber-1]
	lines[lineNumber-1] = newText

	updated = strings.Join(lines, "\n")
	if hadTrailingNewline {
		updated += "\n"
	}
	return updated, original, nil
}

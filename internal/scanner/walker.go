package scanner

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"codeguardian/internal/utils"
	"codeguardian/types"
)

// maxConcurrentAnalyses bounds the file-level parallelism of directory scans
const maxConcurrentAnalyses = 8

// skippedDirs are never descended into during directory analysis
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// AnalyzeFile reads one file and analyzes it, assigning the file name to the
// result afterwards.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*types.AnalysisResult, error) {
	content, err := utils.ReadFileSafely(path)
	if err != nil {
		return nil, err
	}

	result := a.Analyze(ctx, string(content))
	result.FileName = path
	return result, nil
}

// AnalyzeDirectory walks the tree under root and analyzes every code file,
// a bounded number at a time. Unreadable files are logged and skipped so one
// bad file cannot abort the scan. Results come back sorted by file name.
func (a *Analyzer) AnalyzeDirectory(ctx context.Context, root string) ([]*types.AnalysisResult, error) {
	log.Printf("🔍 Analyzing directory %s...", root)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsCodeFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []*types.AnalysisResult
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentAnalyses)

	for _, path := range files {
		group.Go(func() error {
			result, err := a.AnalyzeFile(groupCtx, path)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				log.Printf("⚠️  Skipping %s: %v", path, err)
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FileName < results[j].FileName
	})

	total := 0
	for _, r := range results {
		total += len(r.Issues)
	}
	log.Printf("✅ Analyzed %d files, %d issues", len(results), total)
	return results, nil
}

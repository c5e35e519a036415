package util

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFileName is the line-oriented exclude file kept next to the project
// root, in the spirit of .gitignore but scoped to file sync.
const IgnoreFileName = ".vpignore"

// ReadIgnorePatterns reads literal glob patterns from the ignore file under
// baseDir. Blank lines and lines starting with # are skipped. A missing file
// is not an error; it simply contributes no patterns.
func ReadIgnorePatterns(baseDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(baseDir, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	patterns := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// MergePatterns combines exclude pattern lists, dropping duplicates. Pattern
// order is irrelevant to the transfer tool, so the result is sorted only to
// keep output deterministic.
func MergePatterns(lists ...[]string) []string {
	seen := make(map[string]struct{})
	merged := make([]string, 0)
	for _, list := range lists {
		for _, pattern := range list {
			if _, ok := seen[pattern]; ok {
				continue
			}
			seen[pattern] = struct{}{}
			merged = append(merged, pattern)
		}
	}
	sort.Strings(merged)
	return merged
}

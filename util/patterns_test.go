package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	content := "# sync excludes\n\n.git/\n*.pyc\n  data/raw/  \n#checkpoints/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, IgnoreFileName), []byte(content), 0o644))

	patterns, err := ReadIgnorePatterns(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".git/", "*.pyc", "data/raw/"}, patterns)
}

func TestReadIgnorePatternsMissingFile(t *testing.T) {
	patterns, err := ReadIgnorePatterns(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, patterns)
}

func TestMergePatterns(t *testing.T) {
	merged := MergePatterns(
		[]string{".git/", "*.pyc"},
		[]string{".git/", ".venv/"},
	)
	assert.Equal(t, []string{"*.pyc", ".git/", ".venv/"}, merged)
}

func TestMergePatternsEmpty(t *testing.T) {
	assert.Empty(t, MergePatterns(nil, nil))
	assert.Empty(t, MergePatterns())
}

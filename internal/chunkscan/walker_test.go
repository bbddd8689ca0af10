package chunkscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAt(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("content"), 0o644))
}

func TestWalkSkipsDefaultExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeAt(t, root, "main.go")
	writeAt(t, root, "node_modules/pkg/index.js")
	writeAt(t, root, ".git/HEAD")
	writeAt(t, root, "venv/lib/thing.py")

	w := NewWalker(nil, nil)
	var visited []string
	require.NoError(t, w.Walk(root, func(path string) error {
		rel, _ := filepath.Rel(root, path)
		visited = append(visited, filepath.ToSlash(rel))
		return nil
	}))

	assert.ElementsMatch(t, []string{"main.go"}, visited)
}

func TestWalkAppliesCallerExcludes(t *testing.T) {
	root := t.TempDir()
	writeAt(t, root, "keep.go")
	writeAt(t, root, "generated/skip.go")

	w := NewWalker(nil, []string{"**/generated/**"})
	var visited []string
	require.NoError(t, w.Walk(root, func(path string) error {
		rel, _ := filepath.Rel(root, path)
		visited = append(visited, filepath.ToSlash(rel))
		return nil
	}))

	assert.ElementsMatch(t, []string{"keep.go"}, visited)
}

func TestWalkOnlyMatchesIncludedExtensions(t *testing.T) {
	root := t.TempDir()
	writeAt(t, root, "main.go")
	writeAt(t, root, "readme.md")

	w := NewWalker([]string{"**/*.go"}, nil)
	var visited []string
	require.NoError(t, w.Walk(root, func(path string) error {
		rel, _ := filepath.Rel(root, path)
		visited = append(visited, filepath.ToSlash(rel))
		return nil
	}))

	assert.ElementsMatch(t, []string{"main.go"}, visited)
}

func TestIsExcludedHonorsNegationOrder(t *testing.T) {
	w := NewWalker(nil, []string{"**/*.go", "!keep/*.go"})
	assert.True(t, w.IsExcluded("other/file.go"))
	assert.False(t, w.IsExcluded("keep/file.go"))
}

func TestIsExcludedLastMatchingPatternWins(t *testing.T) {
	w := NewWalker(nil, []string{"!keep/*.go", "**/*.go"})
	assert.True(t, w.IsExcluded("keep/file.go"), "later exclude should override the earlier negation")
}

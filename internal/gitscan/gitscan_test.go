package gitscan

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/types"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	return dir
}

func commitFile(t *testing.T, dir, rel, content, message string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", message)
}

func TestHeadReturnsCurrentCommit(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "a.py", "x = 1\n", "initial")

	head, err := Head(dir)
	require.NoError(t, err)
	assert.Len(t, head, 40)
}

func TestHeadChangesAcrossCommits(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "a.py", "x = 1\n", "initial")
	head1, err := Head(dir)
	require.NoError(t, err)

	commitFile(t, dir, "a.py", "x = 2\n", "update")
	head2, err := Head(dir)
	require.NoError(t, err)

	assert.NotEqual(t, head1, head2)
}

func TestDiffReportsAddedModifiedDeletedAndRenamed(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "a.py", "x = 1\n", "initial")
	commitFile(t, dir, "keep.py", "y = 1\n", "keep")
	from, err := Head(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.py"), []byte("z = 1\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "mv", "keep.py", "renamed.py")
	runGit(t, dir, "commit", "-m", "update")
	to, err := Head(dir)
	require.NoError(t, err)

	changes, err := Diff(dir, from, to)
	require.NoError(t, err)

	byPath := map[string]types.FileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	require.Contains(t, byPath, "a.py")
	assert.Equal(t, types.ChangeModified, byPath["a.py"].Status)

	require.Contains(t, byPath, "new.py")
	assert.Equal(t, types.ChangeAdded, byPath["new.py"].Status)

	require.Contains(t, byPath, "renamed.py")
	assert.Equal(t, types.ChangeRenamed, byPath["renamed.py"].Status)
	assert.Equal(t, "keep.py", byPath["renamed.py"].PreviousPath)
}

func TestDiffReturnsErrorForUnknownCommit(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "a.py", "x = 1\n", "initial")
	_, err := Diff(dir, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "HEAD")
	assert.Error(t, err)
}

func TestCloneRejectsInvalidSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clone")
	_, err := Clone("/nonexistent/path/to/repo.git", dest, "")
	assert.Error(t, err)
}

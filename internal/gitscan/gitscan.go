// Package gitscan resolves a repository's current commit and diffs
// two commits into a FileChange list, extending the teacher's
// getGitHead ("what is HEAD") into full commit-to-commit diffing.
package gitscan

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// Head returns the current HEAD commit hash for repoPath, preferring
// `git rev-parse` and falling back to reading .git/HEAD directly when
// git isn't on PATH or the tree is a bare checkout without a git
// binary available (kept verbatim from the teacher's getGitHead).
func Head(repoPath string) (string, error) {
	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err == nil {
		return strings.TrimSpace(string(output)), nil
	}

	headPath := filepath.Join(repoPath, ".git", "HEAD")
	headData, err := os.ReadFile(headPath)
	if err != nil {
		return "", &errs.OperationError{Op: "git_head", Cause: err, Retry: false}
	}

	content := strings.TrimSpace(string(headData))
	if strings.HasPrefix(content, "ref: ") {
		refPath := strings.TrimPrefix(content, "ref: ")
		refFile := filepath.Join(repoPath, ".git", refPath)
		refData, err := os.ReadFile(refFile)
		if err != nil {
			h := sha256.Sum256([]byte(content))
			return fmt.Sprintf("%x", h[:8]), nil
		}
		return strings.TrimSpace(string(refData)), nil
	}

	return content, nil
}

// Clone clones url into destPath at the given branch (if non-empty)
// and returns the cloned tree's HEAD commit, used by the `index <url>`
// CLI verb to materialise a repository before its first indexing pass.
func Clone(url, destPath, branch string) (string, error) {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, destPath)

	cmd := exec.Command("git", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", &errs.OperationError{Op: "git_clone", Cause: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output))), Retry: false}
	}

	return Head(destPath)
}

// Diff returns the file-level changes between fromCommit and
// toCommit, using `git diff --name-status -M` so renames are reported
// as a single entry with both paths rather than a delete+add pair.
func Diff(repoPath, fromCommit, toCommit string) ([]types.FileChange, error) {
	cmd := exec.Command("git", "-C", repoPath, "diff", "--name-status", "-M", fromCommit, toCommit)
	output, err := cmd.Output()
	if err != nil {
		return nil, &errs.OperationError{Op: "git_diff", Cause: err, Retry: false}
	}
	return parseNameStatus(string(output)), nil
}

func parseNameStatus(output string) []types.FileChange {
	var changes []types.FileChange
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		code := fields[0]

		switch {
		case code == "A":
			changes = append(changes, types.FileChange{Path: fields[1], Status: types.ChangeAdded})
		case code == "M":
			changes = append(changes, types.FileChange{Path: fields[1], Status: types.ChangeModified})
		case code == "D":
			changes = append(changes, types.FileChange{Path: fields[1], Status: types.ChangeDeleted})
		case strings.HasPrefix(code, "R"):
			if len(fields) < 3 {
				continue
			}
			changes = append(changes, types.FileChange{
				Path:         fields[2],
				PreviousPath: fields[1],
				Status:       types.ChangeRenamed,
			})
		default:
			changes = append(changes, types.FileChange{Path: fields[1]})
		}
	}
	return changes
}

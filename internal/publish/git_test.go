package publish

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, dir, "config", "user.name", "Test User")
	gitCmd(t, dir, "config", "user.email", "test@example.com")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
}

func commitFile(t *testing.T, dir, name, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(message+"\n"), 0644))
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-m", message)
}

func writeLog(t *testing.T, repo, content string) string {
	t.Helper()
	path := filepath.Join(repo, "logs", "2026", "02", "2026-02-10.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPublishCommitsLocally(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)
	commitFile(t, repo, "README.md", "init")

	g, err := NewGit(ctx, GitOptions{RepoDir: repo})
	require.NoError(t, err)

	path := writeLog(t, repo, "v1\n")
	require.NoError(t, g.Publish(ctx, Request{Paths: []string{path}, Message: "chore: manual task update"}))
	assert.Equal(t, "chore: manual task update", gitCmd(t, repo, "log", "-1", "--format=%s"))

	// Publishing an unchanged file is a no-op.
	require.NoError(t, g.Publish(ctx, Request{Paths: []string{path}, Message: "chore: manual task update"}))
	assert.Equal(t, "2", gitCmd(t, repo, "rev-list", "--count", "HEAD"))
}

func TestPublishOnlyCommitsGivenPaths(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)
	commitFile(t, repo, "README.md", "init")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "notes.txt"), []byte("x"), 0644))

	g, err := NewGit(ctx, GitOptions{RepoDir: repo})
	require.NoError(t, err)

	path := writeLog(t, repo, "v1\n")
	require.NoError(t, g.Publish(ctx, Request{Paths: []string{path}, Message: "chore: activity data update 2026-02-10"}))

	files := gitCmd(t, repo, "show", "--name-only", "--format=", "HEAD")
	assert.Equal(t, "logs/2026/02/2026-02-10.md", files)
}

func TestPublishPushesAndRebases(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remote := t.TempDir()
	gitCmd(t, remote, "init", "--bare")
	gitCmd(t, remote, "symbolic-ref", "HEAD", "refs/heads/main")

	seed := t.TempDir()
	initRepo(t, seed)
	commitFile(t, seed, "README.md", "init")
	gitCmd(t, seed, "remote", "add", "origin", remote)
	gitCmd(t, seed, "push", "origin", "main")

	repo := t.TempDir()
	gitCmd(t, repo, "clone", remote, ".")
	gitCmd(t, repo, "config", "user.name", "Test User")
	gitCmd(t, repo, "config", "user.email", "test@example.com")
	gitCmd(t, repo, "config", "commit.gpgsign", "false")

	// The remote moves ahead so the first push is rejected.
	commitFile(t, seed, "other.md", "other machine")
	gitCmd(t, seed, "push", "origin", "main")

	g, err := NewGit(ctx, GitOptions{RepoDir: repo, Remote: "origin", Branch: "main", Push: true, RetryDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	path := writeLog(t, repo, "v1\n")
	require.NoError(t, g.Publish(ctx, Request{Paths: []string{path}, Message: "chore: manual task update"}))

	assert.Equal(t, "chore: manual task update", gitCmd(t, remote, "log", "-1", "--format=%s", "main"))
	assert.Equal(t, "3", gitCmd(t, remote, "rev-list", "--count", "main"))
}

func TestPublishRejectsPathOutsideRepo(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)

	g, err := NewGit(ctx, GitOptions{RepoDir: repo})
	require.NoError(t, err)

	err = g.Publish(ctx, Request{Paths: []string{filepath.Join(t.TempDir(), "x.md")}, Message: "m"})
	assert.Error(t, err)

	assert.Error(t, g.Publish(ctx, Request{Paths: []string{"x.md"}}))
}

func TestCommitsOn(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)
	commitFile(t, repo, "README.md", "init")
	commitFile(t, repo, "a.txt", "fix login")

	g, err := NewGit(ctx, GitOptions{RepoDir: repo})
	require.NoError(t, err)

	lines, err := g.CommitsOn(ctx, repo, worklog.DateOf(time.Now()), "")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " fix login"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " init"), lines[1])

	lines, err = g.CommitsOn(ctx, repo, "2001-01-01", "")
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = g.CommitsOn(ctx, t.TempDir(), worklog.DateOf(time.Now()), "")
	assert.Error(t, err)
}

package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

// GitOptions configures a Git publisher.
type GitOptions struct {
	// RepoDir is the working tree the logs live in.
	RepoDir string
	// Remote and Branch are passed to push and pull; empty uses git's defaults.
	Remote string
	Branch string
	// Push disables pushing when false; commits stay local.
	Push bool
	// Attempts bounds push tries, each after a pull --rebase. Zero means 3.
	Attempts int
	// RetryDelay is the first wait between push attempts.
	RetryDelay time.Duration
}

// Git implements Publisher using the git CLI.
type Git struct {
	gitPath string
	opts    GitOptions
	log     *logrus.Entry
}

// NewGit verifies git is available on the system.
func NewGit(ctx context.Context, opts GitOptions) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}
	if opts.RepoDir != "" {
		abs, err := filepath.Abs(opts.RepoDir)
		if err != nil {
			return nil, fmt.Errorf("resolve repository %s: %w", opts.RepoDir, err)
		}
		opts.RepoDir = abs
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Git{gitPath: gitPath, opts: opts, log: logging.For("publish")}, nil
}

// Publish stages and commits the given paths, then pushes. A commit with no
// changes is not an error. A rejected push is retried after pull --rebase.
func (g *Git) Publish(ctx context.Context, req Request) error {
	if req.Message == "" {
		return fmt.Errorf("commit message is required")
	}
	if len(req.Paths) == 0 {
		return fmt.Errorf("no paths to publish")
	}
	paths, err := g.relPaths(req.Paths)
	if err != nil {
		return err
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, addArgs...); err != nil {
		return err
	}

	staged, err := g.hasStagedChanges(ctx, paths)
	if err != nil {
		return err
	}
	if !staged {
		g.log.WithField("paths", paths).Debug("nothing to commit")
		return nil
	}

	commitArgs := append([]string{"commit", "-m", req.Message, "--"}, paths...)
	if _, err := g.run(ctx, commitArgs...); err != nil {
		return err
	}
	g.log.WithField("message", req.Message).Info("committed")

	if !g.opts.Push {
		return nil
	}
	return g.push(ctx)
}

func (g *Git) push(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.opts.RetryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		_, err := g.run(ctx, g.remoteArgs("push")...)
		if err == nil {
			return struct{}{}, nil
		}
		g.log.WithError(err).WithField("attempt", attempt).Warn("push failed, rebasing onto remote")
		if _, perr := g.run(ctx, g.remoteArgs("pull", "--rebase")...); perr != nil {
			_, _ = g.run(ctx, "rebase", "--abort")
			return struct{}{}, backoff.Permanent(fmt.Errorf("pull --rebase: %w", perr))
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(g.opts.Attempts)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPushRejected, err)
	}
	g.log.Info("pushed")
	return nil
}

// CommitsOn lists commits made in repoPath during day, one "<hash> <subject>"
// line each, newest first.
func (g *Git) CommitsOn(ctx context.Context, repoPath string, day worklog.Date, author string) ([]string, error) {
	start := day.Time()
	if start.IsZero() {
		return nil, fmt.Errorf("invalid day %q", day)
	}
	args := []string{
		"-C", repoPath, "log",
		"--since=" + start.Format(time.RFC3339),
		"--until=" + start.AddDate(0, 0, 1).Format(time.RFC3339),
		"--oneline", "--no-decorate",
	}
	if author != "" {
		args = append(args, "--author="+author)
	}
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed in %s: %w: %s", repoPath, err, strings.TrimSpace(stderr.String()))
	}

	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (g *Git) hasStagedChanges(ctx context.Context, paths []string) (bool, error) {
	args := append([]string{"-C", g.opts.RepoDir, "diff", "--cached", "--quiet", "--"}, paths...)
	err := exec.CommandContext(ctx, g.gitPath, args...).Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff failed in %s: %w", g.opts.RepoDir, err)
}

func (g *Git) remoteArgs(verb ...string) []string {
	args := append([]string(nil), verb...)
	if g.opts.Remote != "" {
		args = append(args, g.opts.Remote)
		if g.opts.Branch != "" {
			args = append(args, g.opts.Branch)
		}
	}
	return args
}

func (g *Git) relPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			out = append(out, p)
			continue
		}
		rel, err := filepath.Rel(g.opts.RepoDir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("%s is outside repository %s", p, g.opts.RepoDir)
		}
		out = append(out, rel)
	}
	return out, nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.opts.RepoDir}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed in %s: %w: %s", args[0], g.opts.RepoDir, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

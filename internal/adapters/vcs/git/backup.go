// Package git backs up the assistant workspace by committing and pushing it.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
)

const (
	maxSummaryLength = 100
	commandTimeout   = 30 * time.Second
)

var ErrUnavailable = errors.New("git command unavailable")

type runFunc func(ctx context.Context, dir string, args ...string) (stdout string, stderr string, err error)

type Repo struct {
	dir    string
	remote string
	branch string
	run    runFunc
	now    func() time.Time
}

var _ ports.VCS = (*Repo)(nil)

func NewRepo(dir, remote, branch string) *Repo {
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		branch = "main"
	}

	return &Repo{dir: dir, remote: remote, branch: branch, run: runGit, now: time.Now}
}

func (r *Repo) Status(ctx context.Context) (domain.VCSStatus, error) {
	stdout, stderr, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return domain.VCSStatus{Summary: "git not available"}, formatError("status", err, stderr)
	}

	summary := strings.TrimSpace(stdout)
	return domain.VCSStatus{HasChanges: summary != "", Summary: summary}, nil
}

// Backup stages everything, commits with summary in the message and pushes.
// A clean tree is not an error.
func (r *Repo) Backup(ctx context.Context, summary string) (string, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return "", err
	}
	if !status.HasChanges {
		return "No changes to backup", nil
	}

	message := r.commitMessage(summary)

	if _, stderr, err := r.git(ctx, "add", "."); err != nil {
		return "", formatError("add", err, stderr)
	}
	if _, stderr, err := r.git(ctx, "commit", "-m", message); err != nil {
		return "", formatError("commit", err, stderr)
	}
	if _, stderr, err := r.git(ctx, "push", r.remote, r.branch); err != nil {
		return "", formatError("push", err, stderr)
	}

	return "Backup successful: " + message, nil
}

func (r *Repo) commitMessage(summary string) string {
	summary = strings.Join(strings.Fields(summary), " ")
	if summary == "" {
		summary = "auto-backup"
	}
	if runes := []rune(summary); len(runes) > maxSummaryLength {
		summary = string(runes[:maxSummaryLength-3]) + "..."
	}

	return fmt.Sprintf("Auto-backup: %s [%s]", summary, r.now().Format("2006-01-02 15:04:05"))
}

func (r *Repo) git(ctx context.Context, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	return r.run(ctx, r.dir, args...)
}

func runGit(ctx context.Context, dir string, args ...string) (string, string, error) {
	path, err := exec.LookPath("git")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate git command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("git %s: %w", op, err)
	}

	return fmt.Errorf("git %s: %w: %s", op, err, stderr)
}

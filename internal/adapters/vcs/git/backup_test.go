package git

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	dir  string
	args []string
}

func newTestRepo(t *testing.T, responses map[string]func() (string, string, error)) (*Repo, *[]recordedCall) {
	t.Helper()

	calls := &[]recordedCall{}
	repo := NewRepo("/srv/assistant", "", "")
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC) }
	repo.run = func(ctx context.Context, dir string, args ...string) (string, string, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		*calls = append(*calls, recordedCall{dir: dir, args: args})
		if respond, ok := responses[args[0]]; ok {
			return respond()
		}
		return "", "", nil
	}
	return repo, calls
}

func TestStatusReportsChanges(t *testing.T) {
	t.Parallel()

	repo, calls := newTestRepo(t, map[string]func() (string, string, error){
		"status": func() (string, string, error) { return " M sessions/cumulative_recap.toml\n", "", nil },
	})

	status, err := repo.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.HasChanges)
	assert.Equal(t, "M sessions/cumulative_recap.toml", status.Summary)
	assert.Equal(t, []recordedCall{{dir: "/srv/assistant", args: []string{"status", "--porcelain"}}}, *calls)
}

func TestBackupSkipsCleanTree(t *testing.T) {
	t.Parallel()

	repo, calls := newTestRepo(t, nil)

	msg, err := repo.Backup(context.Background(), "session done")
	require.NoError(t, err)
	assert.Equal(t, "No changes to backup", msg)
	assert.Len(t, *calls, 1)
}

func TestBackupCommitsAndPushes(t *testing.T) {
	t.Parallel()

	repo, calls := newTestRepo(t, map[string]func() (string, string, error){
		"status": func() (string, string, error) { return "?? notes.md\n", "", nil },
	})

	msg, err := repo.Backup(context.Background(), "Implemented caching\nlayer")
	require.NoError(t, err)
	assert.Equal(t, "Backup successful: Auto-backup: Implemented caching layer [2026-03-01 18:30:00]", msg)

	require.Len(t, *calls, 4)
	assert.Equal(t, []string{"add", "."}, (*calls)[1].args)
	assert.Equal(t, []string{"commit", "-m", "Auto-backup: Implemented caching layer [2026-03-01 18:30:00]"}, (*calls)[2].args)
	assert.Equal(t, []string{"push", "origin", "main"}, (*calls)[3].args)
}

func TestBackupTruncatesLongSummary(t *testing.T) {
	t.Parallel()

	repo := NewRepo("", "", "")
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	msg := repo.commitMessage(strings.Repeat("x", 150))
	assert.Contains(t, msg, strings.Repeat("x", 97)+"...")
	assert.NotContains(t, msg, strings.Repeat("x", 98))
}

func TestBackupStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	repo, calls := newTestRepo(t, map[string]func() (string, string, error){
		"status": func() (string, string, error) { return "?? notes.md\n", "", nil },
		"commit": func() (string, string, error) { return "", "Author identity unknown", errors.New("exit status 128") },
	})

	_, err := repo.Backup(context.Background(), "session done")
	require.Error(t, err)
	assert.ErrorContains(t, err, "git commit")
	assert.ErrorContains(t, err, "Author identity unknown")
	assert.Len(t, *calls, 3)
}

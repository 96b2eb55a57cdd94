package systemd

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeParsesIsActiveOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stdout string
		err    error
		want   domain.ServiceState
	}{
		{name: "active", stdout: "active\n", want: domain.ServiceRunning},
		{name: "inactive exits non-zero", stdout: "inactive\n", err: errors.New("exit status 3"), want: domain.ServiceStopped},
		{name: "failed", stdout: "failed\n", err: errors.New("exit status 3"), want: domain.ServiceStopped},
		{name: "activating", stdout: "activating\n", want: domain.ServiceStarting},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := &Supervisor{run: func(_ context.Context, name string, args ...string) (string, string, error) {
				assert.Equal(t, "systemctl", name)
				assert.Equal(t, []string{"is-active", "opencode.service"}, args)
				return tc.stdout, "", tc.err
			}}

			got, err := s.Probe(context.Background(), "opencode.service")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.State)
		})
	}
}

func TestProbeReportsUnknownOnCommandFailure(t *testing.T) {
	t.Parallel()

	s := &Supervisor{run: func(context.Context, string, ...string) (string, string, error) {
		return "", "", ErrUnavailable
	}}

	got, err := s.Probe(context.Background(), "opencode.service")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, domain.ServiceUnknown, got.State)
}

func TestIssueUsesSudoWhenConfigured(t *testing.T) {
	t.Parallel()

	var gotName string
	var gotArgs []string
	s := &Supervisor{useSudo: true, run: func(_ context.Context, name string, args ...string) (string, string, error) {
		gotName, gotArgs = name, args
		return "", "", nil
	}}

	require.NoError(t, s.Issue(context.Background(), "opencode.service", domain.DirectiveRestart))
	assert.Equal(t, "sudo", gotName)
	assert.Equal(t, []string{"-n", "systemctl", "restart", "opencode.service"}, gotArgs)
}

func TestIssueReturnsClearError(t *testing.T) {
	t.Parallel()

	s := &Supervisor{run: func(context.Context, string, ...string) (string, string, error) {
		return "", "Unit opencode.service not found.", errors.New("exit status 5")
	}}

	err := s.Issue(context.Background(), "opencode.service", domain.DirectiveStart)
	require.Error(t, err)
	assert.ErrorContains(t, err, "systemctl start")
	assert.ErrorContains(t, err, "not found")
}

func TestIssueRejectsUnknownDirective(t *testing.T) {
	t.Parallel()

	s := &Supervisor{run: func(context.Context, string, ...string) (string, string, error) {
		t.Fatal("run must not be called")
		return "", "", nil
	}}

	assert.ErrorContains(t, s.Issue(context.Background(), "opencode.service", domain.Directive("reload")), "unsupported directive")
}

func TestDescribeKeepsOutputOfStoppedUnit(t *testing.T) {
	t.Parallel()

	s := &Supervisor{run: func(_ context.Context, _ string, args ...string) (string, string, error) {
		assert.Equal(t, []string{"status", "--no-pager", "opencode.service"}, args)
		return "○ opencode.service - OpenCode\n   Active: inactive (dead)\n", "", errors.New("exit status 3")
	}}

	out, err := s.Describe(context.Background(), "opencode.service")
	require.NoError(t, err)
	assert.Contains(t, out, "inactive (dead)")
}

// Package systemd drives a unit through systemctl.
package systemd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
)

var ErrUnavailable = errors.New("systemctl command unavailable")

type runFunc func(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)

type Supervisor struct {
	run     runFunc
	useSudo bool
}

var _ ports.ServiceSupervisor = (*Supervisor)(nil)

// NewSupervisor returns a supervisor that issues directives through sudo when
// useSudo is set. Probes never use sudo.
func NewSupervisor(useSudo bool) *Supervisor {
	return &Supervisor{run: runCommand, useSudo: useSudo}
}

func (s *Supervisor) Probe(ctx context.Context, service string) (domain.ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProbeResult{State: domain.ServiceUnknown}, err
	}

	stdout, stderr, err := s.run(ctx, "systemctl", "is-active", service)
	state := parseActiveState(stdout)
	if err != nil && state == domain.ServiceUnknown {
		return domain.ProbeResult{State: domain.ServiceUnknown, Output: stderr}, formatError("is-active", service, err, stderr)
	}

	// is-active exits non-zero for inactive units; the printed state is still valid.
	return domain.ProbeResult{State: state, Output: strings.TrimSpace(stdout)}, nil
}

func (s *Supervisor) Issue(ctx context.Context, service string, directive domain.Directive) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch directive {
	case domain.DirectiveStart, domain.DirectiveStop, domain.DirectiveRestart:
	default:
		return fmt.Errorf("unsupported directive %q", directive)
	}

	name, args := "systemctl", []string{string(directive), service}
	if s.useSudo {
		name, args = "sudo", append([]string{"-n", "systemctl"}, args...)
	}

	_, stderr, err := s.run(ctx, name, args...)
	if err != nil {
		return formatError(string(directive), service, err, stderr)
	}

	return nil
}

func (s *Supervisor) Describe(ctx context.Context, service string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stdout, stderr, err := s.run(ctx, "systemctl", "status", "--no-pager", service)
	if err != nil && strings.TrimSpace(stdout) == "" {
		return "", formatError("status", service, err, stderr)
	}

	// status exits 3 for stopped units and still prints the description.
	return strings.TrimRight(stdout, "\n"), nil
}

func parseActiveState(stdout string) domain.ServiceState {
	switch strings.TrimSpace(stdout) {
	case "active", "reloading":
		return domain.ServiceRunning
	case "inactive", "failed", "dead":
		return domain.ServiceStopped
	case "activating":
		return domain.ServiceStarting
	case "deactivating":
		return domain.ServiceStopping
	default:
		return domain.ServiceUnknown
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate %s command: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, service string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("systemctl %s %q: %w", op, service, err)
	}

	return fmt.Errorf("systemctl %s %q: %w: %s", op, service, err, stderr)
}

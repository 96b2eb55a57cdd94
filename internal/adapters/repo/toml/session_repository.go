package toml

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/spf13/viper"
)

// SessionRepository keeps one file per session plus a copy of the most
// recent one, so the latest session can be read without listing the
// directory.
type SessionRepository struct {
	dir string
	mu  *sync.RWMutex
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(cfg *viper.Viper) (*SessionRepository, error) {
	dir, err := resolvePath(cfg, SessionsDirKey, sessionsDirName)
	if err != nil {
		return nil, err
	}

	return &SessionRepository{dir: dir, mu: lockForPath(dir)}, nil
}

func (r *SessionRepository) Save(ctx context.Context, report domain.SessionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.pathForID(report.ID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := sessionFileSchema{Session: toSessionSchema(report)}
	file.applyDefaults()

	if err := writeTOMLFile(path, file); err != nil {
		return fmt.Errorf("save session %s: %w", report.ID, err)
	}
	if err := writeTOMLFile(filepath.Join(r.dir, latestFileName), file); err != nil {
		return fmt.Errorf("save latest session: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id domain.SessionID) (domain.SessionReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionReport{}, err
	}

	path, err := r.pathForID(id)
	if err != nil {
		return domain.SessionReport{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return readSession(path)
}

func (r *SessionRepository) Latest(ctx context.Context) (domain.SessionReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionReport{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return readSession(filepath.Join(r.dir, latestFileName))
}

func (r *SessionRepository) pathForID(id domain.SessionID) (string, error) {
	raw := strings.TrimSpace(string(id))
	if raw == "" || strings.ContainsAny(raw, `/\`) || raw == "." || raw == ".." {
		return "", fmt.Errorf("%w: unusable session id %q", domain.ErrInvalidState, id)
	}

	return filepath.Join(r.dir, fmt.Sprintf(sessionFilePattern, raw)), nil
}

func readSession(path string) (domain.SessionReport, error) {
	var file sessionFileSchema
	found, err := readTOMLFile(path, &file)
	if err != nil {
		if found {
			return domain.SessionReport{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
		}
		return domain.SessionReport{}, err
	}
	if !found {
		return domain.SessionReport{}, domain.ErrNotFound
	}
	if err := file.validateVersion(); err != nil {
		return domain.SessionReport{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
	}

	return fromSessionSchema(file.Session), nil
}

func toSessionSchema(report domain.SessionReport) sessionSchema {
	return sessionSchema{
		SessionID:        string(report.ID),
		StartTime:        formatTime(report.StartTime),
		EndTime:          formatTime(report.EndTime),
		WorkingDirectory: report.WorkingDirectory,
		Accomplishments:  report.Accomplishments,
		CurrentState:     report.CurrentState,
		NextSteps:        report.NextSteps,
		Notes:            report.Notes,
		VCSStatus: vcsStatusSchema{
			HasChanges:   report.VCS.HasChanges,
			StatusOutput: report.VCS.Summary,
		},
		ServiceStatus: serviceStatusSchema{
			Running:      report.Service.Running,
			StatusOutput: report.Service.Summary,
		},
	}
}

func fromSessionSchema(schema sessionSchema) domain.SessionReport {
	return domain.SessionReport{
		ID:               domain.SessionID(schema.SessionID),
		StartTime:        parseTime(schema.StartTime),
		EndTime:          parseTime(schema.EndTime),
		WorkingDirectory: schema.WorkingDirectory,
		Accomplishments:  schema.Accomplishments,
		CurrentState:     schema.CurrentState,
		NextSteps:        schema.NextSteps,
		Notes:            schema.Notes,
		VCS: domain.VCSStatus{
			HasChanges: schema.VCSStatus.HasChanges,
			Summary:    schema.VCSStatus.StatusOutput,
		},
		Service: domain.ServiceStatus{
			Running: schema.ServiceStatus.Running,
			Summary: schema.ServiceStatus.StatusOutput,
		},
	}
}

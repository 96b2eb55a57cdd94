package toml

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/spf13/viper"
)

const (
	SessionsDirKey     = "sessions.dir"
	sessionsDirName    = "sessions"
	recapFileName      = "cumulative_recap.toml"
	latestFileName     = "current_session.toml"
	sessionFilePattern = "%s.toml"
)

type RecapRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.RecapRepository = (*RecapRepository)(nil)

func NewRecapRepository(cfg *viper.Viper) (*RecapRepository, error) {
	dir, err := resolvePath(cfg, SessionsDirKey, sessionsDirName)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, recapFileName)
	return &RecapRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *RecapRepository) Path() string {
	return r.path
}

func (r *RecapRepository) Get(ctx context.Context) (domain.CumulativeRecap, error) {
	if err := ctx.Err(); err != nil {
		return domain.CumulativeRecap{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var file recapFileSchema
	found, err := readTOMLFile(r.path, &file)
	if err != nil {
		if found {
			return domain.CumulativeRecap{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
		}
		return domain.CumulativeRecap{}, err
	}
	if !found {
		return domain.CumulativeRecap{}, domain.ErrNotFound
	}
	if err := file.validateVersion(); err != nil {
		return domain.CumulativeRecap{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
	}

	return fromRecapSchema(file.Recap), nil
}

func (r *RecapRepository) Save(ctx context.Context, recap domain.CumulativeRecap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := recapFileSchema{Recap: toRecapSchema(recap)}
	file.applyDefaults()

	if err := writeTOMLFile(r.path, file); err != nil {
		return fmt.Errorf("save recap: %w", err)
	}

	return nil
}

func toRecapSchema(recap domain.CumulativeRecap) recapSchema {
	return recapSchema{
		ProjectStartTime:    formatTime(recap.ProjectStartTime),
		LastUpdated:         formatTime(recap.LastUpdated),
		TotalSessions:       recap.TotalSessions,
		TechnicalDecisions:  nonNil(recap.TechnicalDecisions),
		ArchitectureChanges: nonNil(recap.ArchitectureChanges),
		CriticalDiscoveries: nonNil(recap.CriticalDiscoveries),
		CurrentState: currentStateSchema{
			SessionID:   string(recap.CurrentState.SessionID),
			Summary:     recap.CurrentState.Summary,
			LastUpdated: formatTime(recap.CurrentState.UpdatedAt),
		},
		NextSteps:           nonNil(recap.NextSteps),
		SecurityConstraints: nonNil(recap.SecurityConstraints),
		BlockedItems:        nonNil(recap.BlockedItems),
		CompletedPhases:     nonNil(recap.CompletedPhases),
	}
}

func fromRecapSchema(schema recapSchema) domain.CumulativeRecap {
	return domain.CumulativeRecap{
		ProjectStartTime:    parseTime(schema.ProjectStartTime),
		LastUpdated:         parseTime(schema.LastUpdated),
		TotalSessions:       schema.TotalSessions,
		TechnicalDecisions:  nonNil(schema.TechnicalDecisions),
		ArchitectureChanges: nonNil(schema.ArchitectureChanges),
		CriticalDiscoveries: nonNil(schema.CriticalDiscoveries),
		CurrentState: domain.CurrentState{
			SessionID: domain.SessionID(schema.CurrentState.SessionID),
			Summary:   schema.CurrentState.Summary,
			UpdatedAt: parseTime(schema.CurrentState.LastUpdated),
		},
		NextSteps:           nonNil(schema.NextSteps),
		SecurityConstraints: nonNil(schema.SecurityConstraints),
		BlockedItems:        nonNil(schema.BlockedItems),
		CompletedPhases:     nonNil(schema.CompletedPhases),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

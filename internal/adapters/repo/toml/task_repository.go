package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/spf13/viper"
)

const (
	StatePathKey  = "state.path"
	stateFileName = "state.toml"
)

type ActiveTaskRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ActiveTaskRepository = (*ActiveTaskRepository)(nil)

func NewActiveTaskRepository(cfg *viper.Viper) (*ActiveTaskRepository, error) {
	path, err := resolvePath(cfg, StatePathKey, stateFileName)
	if err != nil {
		return nil, err
	}

	return &ActiveTaskRepository{path: path, mu: lockForPath(path)}, nil
}

// Get returns the zero task when none is recorded.
func (r *ActiveTaskRepository) Get(ctx context.Context) (domain.ActiveTask, error) {
	if err := ctx.Err(); err != nil {
		return domain.ActiveTask{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var file stateFileSchema
	found, err := readTOMLFile(r.path, &file)
	if err != nil {
		if found {
			return domain.ActiveTask{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
		}
		return domain.ActiveTask{}, err
	}
	if !found || file.ActiveTask == nil {
		return domain.ActiveTask{}, nil
	}
	if err := file.validateVersion(); err != nil {
		return domain.ActiveTask{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
	}

	return domain.ActiveTask{
		Description: file.ActiveTask.Description,
		StartedAt:   parseTime(file.ActiveTask.StartedAt),
	}, nil
}

func (r *ActiveTaskRepository) Save(ctx context.Context, task domain.ActiveTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := stateFileSchema{ActiveTask: &activeTaskSchema{
		Description: task.Description,
		StartedAt:   formatTime(task.StartedAt),
	}}
	file.applyDefaults()

	if err := writeTOMLFile(r.path, file); err != nil {
		return fmt.Errorf("save active task: %w", err)
	}

	return nil
}

func (r *ActiveTaskRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear active task: %w", err)
	}

	return nil
}

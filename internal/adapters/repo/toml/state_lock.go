package toml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/gofrs/flock"
	"github.com/spf13/viper"
)

const (
	lockFileName   = ".lock"
	lockRetryDelay = 25 * time.Millisecond
)

// StateLock is an advisory file lock shared by every process that reads and
// rewrites the recap, the session records and the active task. Each Lock call
// opens its own descriptor, so it also excludes goroutines of one process.
type StateLock struct {
	path  string
	retry time.Duration
}

var _ ports.StateLocker = (*StateLock)(nil)

func NewStateLock(cfg *viper.Viper) (*StateLock, error) {
	dir, err := resolvePath(cfg, SessionsDirKey, sessionsDirName)
	if err != nil {
		return nil, err
	}

	return &StateLock{path: filepath.Join(dir, lockFileName), retry: lockRetryDelay}, nil
}

func (l *StateLock) Path() string {
	return l.path
}

// Lock blocks until the lock is held or ctx is done.
func (l *StateLock) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), dirMode); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fileLock := flock.New(l.path)
	locked, err := fileLock.TryLockContext(ctx, l.retry)
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire state lock: %s is held elsewhere", l.path)
	}

	return func() {
		_ = fileLock.Unlock()
	}, nil
}

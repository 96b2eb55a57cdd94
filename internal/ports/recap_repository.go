package ports

import (
	"context"

	"github.com/bnema/assistant-continuity/internal/domain"
)

// RecapRepository persists the single cumulative recap. Get returns
// domain.ErrNotFound when nothing was saved yet and domain.ErrCorruptState when
// the stored record cannot be decoded.
type RecapRepository interface {
	Get(ctx context.Context) (domain.CumulativeRecap, error)
	Save(ctx context.Context, recap domain.CumulativeRecap) error
}

type SessionRepository interface {
	Save(ctx context.Context, report domain.SessionReport) error
	GetByID(ctx context.Context, id domain.SessionID) (domain.SessionReport, error)
	Latest(ctx context.Context) (domain.SessionReport, error)
}

type ActiveTaskRepository interface {
	Get(ctx context.Context) (domain.ActiveTask, error)
	Save(ctx context.Context, task domain.ActiveTask) error
	Clear(ctx context.Context) error
}

// StateLocker serializes read-modify-write cycles over the persisted state,
// including across processes. The returned func releases the lock.
type StateLocker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

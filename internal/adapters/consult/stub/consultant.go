// Package stub is a stand-in consultant used until the backend exposes a
// consultation endpoint.
package stub

import (
	"context"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
)

type Consultant struct {
	delay time.Duration
	now   func() time.Time
}

var _ ports.Consultant = (*Consultant)(nil)

func NewConsultant(delay time.Duration) *Consultant {
	return &Consultant{delay: delay, now: time.Now}
}

func (c *Consultant) Consult(ctx context.Context, task string) (domain.ConsultResult, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return domain.ConsultResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	return domain.ConsultResult{
		Task:        task,
		Status:      "completed",
		Response:    "consultation acknowledged; no backend transport configured",
		CompletedAt: c.now(),
	}, nil
}

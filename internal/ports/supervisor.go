package ports

import (
	"context"

	"github.com/bnema/assistant-continuity/internal/domain"
)

type ServiceSupervisor interface {
	Probe(ctx context.Context, service string) (domain.ProbeResult, error)
	Issue(ctx context.Context, service string, directive domain.Directive) error
	Describe(ctx context.Context, service string) (string, error)
}

type Consultant interface {
	Consult(ctx context.Context, task string) (domain.ConsultResult, error)
}

type VCS interface {
	Status(ctx context.Context) (domain.VCSStatus, error)
	Backup(ctx context.Context, summary string) (string, error)
}

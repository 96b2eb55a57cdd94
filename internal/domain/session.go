package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string

type VCSStatus struct {
	HasChanges bool
	Summary    string
}

type ServiceStatus struct {
	Running bool
	Summary string
}

// SessionReport is the free-text account of one completed work session.
type SessionReport struct {
	ID               SessionID
	StartTime        time.Time
	EndTime          time.Time
	WorkingDirectory string
	Accomplishments  string
	CurrentState     string
	NextSteps        string
	Notes            string
	VCS              VCSStatus
	Service          ServiceStatus
}

func (r SessionReport) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidState)
	}
	if r.EndTime.Before(r.StartTime) {
		return fmt.Errorf("%w: session %s ends before it starts", ErrInvalidState, r.ID)
	}

	return nil
}

// SessionKeyPoints is what the extractor pulls out of a report before it is
// folded into the recap.
type SessionKeyPoints struct {
	SessionID           SessionID
	SessionStart        time.Time
	SessionTime         time.Time
	Accomplishments     string
	CurrentState        string
	TechnicalDecisions  []string
	ArchitectureChanges []string
	NextSteps           []string
	Security            []string
	Critical            []string
	Blockers            []string
	CompletedPhases     []string
}

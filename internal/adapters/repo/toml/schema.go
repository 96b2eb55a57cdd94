package toml

import "fmt"

const (
	currentRecapSchemaVersion   = 1
	currentSessionSchemaVersion = 1
	currentStateSchemaVersion   = 1
)

type recapFileSchema struct {
	Version int         `toml:"version"`
	Recap   recapSchema `toml:"recap"`
}

func (s *recapFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentRecapSchemaVersion
	}
}

func (s recapFileSchema) validateVersion() error {
	if s.Version > currentRecapSchemaVersion {
		return fmt.Errorf("unsupported recap schema version %d (current %d)", s.Version, currentRecapSchemaVersion)
	}

	return nil
}

type recapSchema struct {
	ProjectStartTime    string             `toml:"project_start_time"`
	LastUpdated         string             `toml:"last_updated"`
	TotalSessions       int                `toml:"total_sessions"`
	TechnicalDecisions  []string           `toml:"technical_decisions"`
	ArchitectureChanges []string           `toml:"architecture_changes"`
	CriticalDiscoveries []string           `toml:"critical_discoveries"`
	CurrentState        currentStateSchema `toml:"current_state"`
	NextSteps           []string           `toml:"next_steps"`
	SecurityConstraints []string           `toml:"security_constraints"`
	BlockedItems        []string           `toml:"blocked_items"`
	CompletedPhases     []string           `toml:"completed_phases"`
}

type currentStateSchema struct {
	SessionID   string `toml:"session_id"`
	Summary     string `toml:"state_summary"`
	LastUpdated string `toml:"last_updated"`
}

type sessionFileSchema struct {
	Version int           `toml:"version"`
	Session sessionSchema `toml:"session"`
}

func (s *sessionFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSessionSchemaVersion
	}
}

func (s sessionFileSchema) validateVersion() error {
	if s.Version > currentSessionSchemaVersion {
		return fmt.Errorf("unsupported session schema version %d (current %d)", s.Version, currentSessionSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	SessionID        string              `toml:"session_id"`
	StartTime        string              `toml:"start_time"`
	EndTime          string              `toml:"end_time"`
	WorkingDirectory string              `toml:"working_directory"`
	Accomplishments  string              `toml:"accomplishments"`
	CurrentState     string              `toml:"current_state"`
	NextSteps        string              `toml:"next_steps"`
	Notes            string              `toml:"notes"`
	VCSStatus        vcsStatusSchema     `toml:"vcs_status"`
	ServiceStatus    serviceStatusSchema `toml:"service_status"`
}

type vcsStatusSchema struct {
	HasChanges   bool   `toml:"has_changes"`
	StatusOutput string `toml:"status_output"`
}

type serviceStatusSchema struct {
	Running      bool   `toml:"running"`
	StatusOutput string `toml:"status_output"`
}

type stateFileSchema struct {
	Version    int               `toml:"version"`
	ActiveTask *activeTaskSchema `toml:"active_task,omitempty"`
}

func (s *stateFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentStateSchemaVersion
	}
}

func (s stateFileSchema) validateVersion() error {
	if s.Version > currentStateSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentStateSchemaVersion)
	}

	return nil
}

type activeTaskSchema struct {
	Description string `toml:"description"`
	StartedAt   string `toml:"started_at"`
}

package domain

import "time"

type ServiceState string

const (
	ServiceStopped  ServiceState = "stopped"
	ServiceStarting ServiceState = "starting"
	ServiceRunning  ServiceState = "running"
	ServiceStopping ServiceState = "stopping"
	ServiceUnknown  ServiceState = "unknown"
)

func (s ServiceState) Label() string {
	if s == "" {
		return string(ServiceUnknown)
	}
	return string(s)
}

type Directive string

const (
	DirectiveStart   Directive = "start"
	DirectiveStop    Directive = "stop"
	DirectiveRestart Directive = "restart"
)

// ProbeResult is what the supervisor reports for one status probe.
type ProbeResult struct {
	State  ServiceState
	Output string
}

type ConsultResult struct {
	Task        string
	Status      string
	Response    string
	CompletedAt time.Time
}

package domain

import (
	"strings"
	"time"
)

const (
	MaxTechnicalDecisions  = 20
	MaxArchitectureChanges = 15
	MaxCriticalDiscoveries = 25
	MaxNextSteps           = 5
	MaxBlockedItems        = 10
)

type CurrentState struct {
	SessionID SessionID
	Summary   string
	UpdatedAt time.Time
}

// CumulativeRecap is the rolling project memory. TotalSessions == 0 means no
// session has ever been merged.
type CumulativeRecap struct {
	ProjectStartTime    time.Time
	LastUpdated         time.Time
	TotalSessions       int
	TechnicalDecisions  []string
	ArchitectureChanges []string
	CriticalDiscoveries []string
	CurrentState        CurrentState
	NextSteps           []string
	SecurityConstraints []string
	BlockedItems        []string
	CompletedPhases     []string
}

func EmptyRecap() CumulativeRecap {
	return CumulativeRecap{
		TechnicalDecisions:  []string{},
		ArchitectureChanges: []string{},
		CriticalDiscoveries: []string{},
		NextSteps:           []string{},
		SecurityConstraints: []string{},
		BlockedItems:        []string{},
		CompletedPhases:     []string{},
	}
}

func (r CumulativeRecap) IsEmpty() bool {
	return r.TotalSessions == 0
}

// Merge folds one session into the recap and returns the result. The receiver
// is left untouched.
func (r CumulativeRecap) Merge(points SessionKeyPoints) CumulativeRecap {
	next := r.Clone()

	if next.ProjectStartTime.IsZero() {
		next.ProjectStartTime = points.SessionStart
		if next.ProjectStartTime.IsZero() {
			next.ProjectStartTime = points.SessionTime
		}
	}
	next.TotalSessions++
	next.LastUpdated = points.SessionTime

	next.TechnicalDecisions = appendBounded(next.TechnicalDecisions, points.TechnicalDecisions, MaxTechnicalDecisions)
	next.ArchitectureChanges = appendBounded(next.ArchitectureChanges, points.ArchitectureChanges, MaxArchitectureChanges)
	next.CriticalDiscoveries = appendBounded(next.CriticalDiscoveries, points.Critical, MaxCriticalDiscoveries)

	next.CurrentState = CurrentState{
		SessionID: points.SessionID,
		Summary:   points.CurrentState,
		UpdatedAt: points.SessionTime,
	}
	next.NextSteps = appendBounded(nil, points.NextSteps, MaxNextSteps)
	next.BlockedItems = appendBounded(nil, points.Blockers, MaxBlockedItems)

	next.SecurityConstraints = appendUnique(next.SecurityConstraints, points.Security)
	next.CompletedPhases = appendUnique(next.CompletedPhases, points.CompletedPhases)

	return next
}

func (r CumulativeRecap) Clone() CumulativeRecap {
	clone := r
	clone.TechnicalDecisions = cloneStrings(r.TechnicalDecisions)
	clone.ArchitectureChanges = cloneStrings(r.ArchitectureChanges)
	clone.CriticalDiscoveries = cloneStrings(r.CriticalDiscoveries)
	clone.NextSteps = cloneStrings(r.NextSteps)
	clone.SecurityConstraints = cloneStrings(r.SecurityConstraints)
	clone.BlockedItems = cloneStrings(r.BlockedItems)
	clone.CompletedPhases = cloneStrings(r.CompletedPhases)
	return clone
}

// Recent returns at most n trailing entries of items.
func Recent(items []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

// appendBounded keeps the newest max entries; eviction is oldest first.
func appendBounded(existing, added []string, max int) []string {
	merged := make([]string, 0, len(existing)+len(added))
	merged = append(merged, existing...)
	merged = append(merged, added...)
	if len(merged) > max {
		merged = merged[len(merged)-max:]
	}
	return merged
}

// appendUnique is an ordered dedup: the first occurrence of an entry wins.
func appendUnique(existing, added []string) []string {
	merged := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]struct{}, len(existing)+len(added))
	for _, group := range [][]string{existing, added} {
		for _, item := range group {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

func cloneStrings(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

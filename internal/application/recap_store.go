package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/extract"
	"github.com/bnema/assistant-continuity/internal/ports"
	"go.uber.org/zap"
)

const (
	FreshStartContext = "# No previous session found\n\nStarting fresh session."

	briefingNextSteps     = 5
	briefingDecisions     = 5
	briefingArchitecture  = 3
	briefingDiscoveries   = 5
	timelineLayout        = time.RFC3339
	noCurrentStateMessage = "No current state recorded"
)

// RecapStore owns the cumulative recap. Merges are serialized within the
// process by mu and across processes by the state lock.
type RecapStore struct {
	recaps    ports.RecapRepository
	sessions  ports.SessionRepository
	locker    ports.StateLocker
	extractor *extract.Extractor
	clock     ports.Clock
	logger    *zap.Logger

	mu sync.Mutex
}

func NewRecapStore(recaps ports.RecapRepository, sessions ports.SessionRepository, locker ports.StateLocker, extractor *extract.Extractor, clock ports.Clock, logger *zap.Logger) *RecapStore {
	if locker == nil {
		locker = noopLocker{}
	}
	if extractor == nil {
		extractor = extract.NewDefault()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecapStore{
		recaps:    recaps,
		sessions:  sessions,
		locker:    locker,
		extractor: extractor,
		clock:     clock,
		logger:    logger,
	}
}

// Load never fails. Missing history and unreadable history both come back as
// the empty recap; the latter is logged.
func (s *RecapStore) Load(ctx context.Context) domain.CumulativeRecap {
	recap, err := s.recaps.Get(ctx)
	if err == nil {
		return recap
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("cumulative recap unreadable, starting from empty history", zap.Error(err))
	}

	return domain.EmptyRecap()
}

func (s *RecapStore) Merge(ctx context.Context, report domain.SessionReport) (domain.CumulativeRecap, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return domain.CumulativeRecap{}, err
	}
	defer unlock()

	return s.mergeLocked(ctx, report)
}

// lock takes the in-process mutex and then the state lock. Callers that need
// more than one merge step under the same lock use it with mergeLocked.
func (s *RecapStore) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	release, err := s.locker.Lock(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	return func() {
		release()
		s.mu.Unlock()
	}, nil
}

// mergeLocked commits the recap first. The session record is auxiliary: a
// failure to write it is logged and does not undo the merge.
func (s *RecapStore) mergeLocked(ctx context.Context, report domain.SessionReport) (domain.CumulativeRecap, error) {
	if err := report.Validate(); err != nil {
		return domain.CumulativeRecap{}, err
	}

	current := s.Load(ctx)
	next := current.Merge(s.extractor.KeyPoints(report))

	if err := s.recaps.Save(ctx, next); err != nil {
		return domain.CumulativeRecap{}, fmt.Errorf("save cumulative recap: %w", err)
	}

	if err := s.sessions.Save(ctx, report); err != nil {
		s.logger.Error("session merged but its record was not saved",
			zap.String("session_id", string(report.ID)),
			zap.Error(err),
		)
	}

	s.logger.Debug("session merged into recap",
		zap.String("session_id", string(report.ID)),
		zap.Int("total_sessions", next.TotalSessions),
	)

	return next, nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context) (func(), error) {
	return func() {}, nil
}

// Latest returns the most recently saved session record. A missing or corrupt
// record reports false.
func (s *RecapStore) Latest(ctx context.Context) (domain.SessionReport, bool) {
	report, err := s.sessions.Latest(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("latest session record unreadable", zap.Error(err))
		}
		return domain.SessionReport{}, false
	}

	return report, true
}

// Session returns the recorded session with id.
func (s *RecapStore) Session(ctx context.Context, id domain.SessionID) (domain.SessionReport, error) {
	report, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.SessionReport{}, fmt.Errorf("session %s: %w", id, err)
	}
	return report, nil
}

func (s *RecapStore) RenderStartContext(recap domain.CumulativeRecap) string {
	return RenderStartContext(domain.NewStartContext(recap))
}

// RenderStartContext renders the briefing handed to the assistant at startup.
func RenderStartContext(start domain.StartContext) string {
	restored, ok := start.(domain.Restored)
	if !ok {
		return FreshStartContext
	}
	recap := restored.Recap

	var b strings.Builder
	b.WriteString("# AI Memory Context Restored\n\n")
	fmt.Fprintf(&b, "Project Timeline: %s to %s\n", formatTimeline(recap.ProjectStartTime), formatTimeline(recap.LastUpdated))
	fmt.Fprintf(&b, "Total Sessions: %d\n", recap.TotalSessions)

	summary := strings.TrimSpace(recap.CurrentState.Summary)
	if summary == "" {
		summary = noCurrentStateMessage
	}
	writeSection(&b, "Current State", summary)

	b.WriteString("\n## Next Steps\n")
	for i, step := range firstN(recap.NextSteps, briefingNextSteps) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	writeList(&b, "Recent Technical Decisions", domain.Recent(recap.TechnicalDecisions, briefingDecisions), true)
	writeList(&b, "Architecture Evolution", domain.Recent(recap.ArchitectureChanges, briefingArchitecture), true)
	writeList(&b, "Security Constraints", recap.SecurityConstraints, false)
	writeList(&b, "Key Discoveries", domain.Recent(recap.CriticalDiscoveries, briefingDiscoveries), false)
	writeList(&b, "Blocked", recap.BlockedItems, false)
	writeList(&b, "Completed Phases", recap.CompletedPhases, false)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "\n## %s\n%s\n", title, body)
}

// writeList emits a bullet section. Optional sections are skipped when empty.
func writeList(b *strings.Builder, title string, items []string, always bool) {
	if len(items) == 0 && !always {
		return
	}

	fmt.Fprintf(b, "\n## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func formatTimeline(value time.Time) string {
	if value.IsZero() {
		return "unknown"
	}
	return value.Format(timelineLayout)
}

package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestRecapStore(t *testing.T) (*RecapStore, *memoryRecapRepository, *memorySessionRepository) {
	t.Helper()

	recaps := &memoryRecapRepository{}
	sessions := newMemorySessionRepository()
	return NewRecapStore(recaps, sessions, nil, nil, newFixedClock(testStart), nil), recaps, sessions
}

func testReport(id string, offset time.Duration) domain.SessionReport {
	return domain.SessionReport{
		ID:              domain.SessionID(id),
		StartTime:       testStart.Add(offset),
		EndTime:         testStart.Add(offset + time.Hour),
		Accomplishments: "✅ Implemented session merging\nDecided to use TOML for state",
		CurrentState:    "Recap persistence works end to end",
		NextSteps:       "1. Wire the CLI\n2. Add status view",
		Notes:           "🔒 Never commit tokens\nCritical: systemd needs sudo on CI",
	}
}

func TestRecapStoreLoadMissingIsEmpty(t *testing.T) {
	store, _, _ := newTestRecapStore(t)

	recap := store.Load(context.Background())
	assert.True(t, recap.IsEmpty())
	assert.Equal(t, FreshStartContext, store.RenderStartContext(recap))
}

func TestRecapStoreLoadCorruptIsEmptyAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	recaps := &memoryRecapRepository{err: fmt.Errorf("%w: bad toml", domain.ErrCorruptState)}
	store := NewRecapStore(recaps, newMemorySessionRepository(), nil, nil, nil, zap.New(core))

	recap := store.Load(context.Background())
	assert.True(t, recap.IsEmpty())
	assert.Equal(t, 1, logs.FilterMessage("cumulative recap unreadable, starting from empty history").Len())
}

func TestRecapStoreMergeFoldsReport(t *testing.T) {
	store, recaps, sessions := newTestRecapStore(t)
	ctx := context.Background()

	first, err := store.Merge(ctx, testReport("s1", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalSessions)
	assert.Equal(t, testStart, first.ProjectStartTime)
	assert.Equal(t, []string{"1. Wire the CLI", "2. Add status view"}, first.NextSteps)
	assert.Equal(t, []string{"🔒 Never commit tokens"}, first.SecurityConstraints)
	assert.Equal(t, domain.SessionID("s1"), first.CurrentState.SessionID)

	second, err := store.Merge(ctx, testReport("s2", 2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalSessions)
	assert.Equal(t, testStart, second.ProjectStartTime, "project start is set once")
	assert.Equal(t, []string{"🔒 Never commit tokens"}, second.SecurityConstraints)

	assert.Equal(t, 2, recaps.saves)
	_, err = sessions.GetByID(ctx, "s2")
	require.NoError(t, err)

	latest, ok := store.Latest(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s2"), latest.ID)
}

func TestRecapStoreMergeRejectsInvalidReport(t *testing.T) {
	store, recaps, _ := newTestRecapStore(t)

	report := testReport("", 0)
	_, err := store.Merge(context.Background(), report)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Zero(t, recaps.saves)
}

func TestRecapStoreMergeKeepsRecapWhenSessionRecordFails(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	recaps := &memoryRecapRepository{}
	sessions := newMemorySessionRepository()
	sessions.saveErr = assert.AnError
	store := NewRecapStore(recaps, sessions, nil, nil, newFixedClock(testStart), zap.New(core))

	recap, err := store.Merge(context.Background(), testReport("s1", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, recap.TotalSessions)
	assert.Equal(t, 1, recaps.saves)

	entries := logs.FilterMessage("session merged but its record was not saved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].ContextMap()["session_id"])
}

func TestRecapStoreMergeRecapFailureWritesNoSessionRecord(t *testing.T) {
	store, recaps, sessions := newTestRecapStore(t)
	recaps.saveErr = assert.AnError

	_, err := store.Merge(context.Background(), testReport("s1", 0))
	require.ErrorIs(t, err, assert.AnError)

	_, err = sessions.GetByID(context.Background(), "s1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecapStoreMergeHoldsStateLock(t *testing.T) {
	locker := &countingLocker{}
	store := NewRecapStore(&memoryRecapRepository{}, newMemorySessionRepository(), locker, nil, newFixedClock(testStart), nil)

	_, err := store.Merge(context.Background(), testReport("s1", 0))
	require.NoError(t, err)

	acquired, held := locker.state()
	assert.Equal(t, 1, acquired)
	assert.False(t, held)
}

func TestRecapStoreMergeFailsWhenStateLockUnavailable(t *testing.T) {
	recaps := &memoryRecapRepository{}
	locker := &countingLocker{err: context.DeadlineExceeded}
	store := NewRecapStore(recaps, newMemorySessionRepository(), locker, nil, newFixedClock(testStart), nil)

	_, err := store.Merge(context.Background(), testReport("s1", 0))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, recaps.saves)
}

func TestRecapStoreMergeRecoversFromCorruptRecap(t *testing.T) {
	store, recaps, _ := newTestRecapStore(t)
	recaps.err = fmt.Errorf("%w: truncated", domain.ErrCorruptState)

	recap, err := store.Merge(context.Background(), testReport("s1", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, recap.TotalSessions)
}

func TestRecapStoreConcurrentMergesCountEverySession(t *testing.T) {
	store, _, _ := newTestRecapStore(t)
	ctx := context.Background()

	const sessions = 16
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Merge(ctx, testReport(fmt.Sprintf("s%02d", i), time.Duration(i)*time.Hour))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recap := store.Load(ctx)
	assert.Equal(t, sessions, recap.TotalSessions)
	assert.LessOrEqual(t, len(recap.TechnicalDecisions), domain.MaxTechnicalDecisions)
}

func TestRecapStoreSessionByID(t *testing.T) {
	store, _, _ := newTestRecapStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, testReport("s1", 0))
	require.NoError(t, err)

	report, err := store.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), report.ID)

	_, err = store.Session(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecapStoreLatestMissing(t *testing.T) {
	store, _, _ := newTestRecapStore(t)

	_, ok := store.Latest(context.Background())
	assert.False(t, ok)
}

func TestRenderStartContextOrderAndLimits(t *testing.T) {
	recap := domain.EmptyRecap()
	recap.TotalSessions = 7
	recap.ProjectStartTime = testStart
	recap.LastUpdated = testStart.Add(48 * time.Hour)
	recap.CurrentState.Summary = "Parser rewrite in progress"
	recap.NextSteps = []string{"n1", "n2", "n3", "n4", "n5"}
	recap.TechnicalDecisions = []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7"}
	recap.ArchitectureChanges = []string{"a1", "a2", "a3", "a4"}
	recap.SecurityConstraints = []string{"s1", "s2"}
	recap.CriticalDiscoveries = []string{"c1"}
	recap.BlockedItems = []string{"blocked on review"}
	recap.CompletedPhases = []string{"phase 1 complete"}

	out := RenderStartContext(domain.NewStartContext(recap))

	assert.Contains(t, out, "Project Timeline: 2026-05-04T09:00:00Z to 2026-05-06T09:00:00Z")
	assert.Contains(t, out, "Total Sessions: 7")
	assert.Contains(t, out, "1. n1\n2. n2\n3. n3\n4. n4\n5. n5")
	assert.NotContains(t, out, "- d2\n")
	assert.Contains(t, out, "- d3\n- d4\n- d5\n- d6\n- d7")
	assert.NotContains(t, out, "- a1\n")
	assert.Contains(t, out, "- a2\n- a3\n- a4")

	order := []string{
		"Project Timeline",
		"Parser rewrite in progress",
		"## Next Steps",
		"## Recent Technical Decisions",
		"## Architecture Evolution",
		"## Security Constraints",
		"## Key Discoveries",
		"## Blocked",
		"## Completed Phases",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		require.GreaterOrEqual(t, idx, 0, marker)
		assert.Greater(t, idx, last, marker)
		last = idx
	}
}

func TestRenderStartContextOmitsEmptyOptionalSections(t *testing.T) {
	recap := domain.EmptyRecap()
	recap.TotalSessions = 1

	out := RenderStartContext(domain.NewStartContext(recap))
	assert.Contains(t, out, noCurrentStateMessage)
	assert.NotContains(t, out, "Security Constraints")
	assert.NotContains(t, out, "Key Discoveries")
	assert.NotContains(t, out, "Blocked")
	assert.Contains(t, out, "Project Timeline: unknown to unknown")
}

func TestRenderStartContextFresh(t *testing.T) {
	assert.Equal(t, "# No previous session found\n\nStarting fresh session.", RenderStartContext(domain.Fresh{}))
}

package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecapMergeCountsSessionsAndRespectsCaps(t *testing.T) {
	t.Parallel()

	recap := EmptyRecap()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 40; i++ {
		recap = recap.Merge(SessionKeyPoints{
			SessionID:           SessionID(fmt.Sprintf("s-%02d", i)),
			SessionStart:        base.Add(time.Duration(i) * time.Hour),
			SessionTime:         base.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			TechnicalDecisions:  []string{fmt.Sprintf("decision %d a", i), fmt.Sprintf("decision %d b", i)},
			ArchitectureChanges: []string{fmt.Sprintf("arch %d", i)},
			Critical:            []string{fmt.Sprintf("critical %d", i)},
			NextSteps:           []string{"1", "2", "3", "4", "5", "6"},
			Blockers:            []string{"waiting on review"},
		})

		assert.Equal(t, i+1, recap.TotalSessions)
		assert.LessOrEqual(t, len(recap.TechnicalDecisions), MaxTechnicalDecisions)
		assert.LessOrEqual(t, len(recap.ArchitectureChanges), MaxArchitectureChanges)
		assert.LessOrEqual(t, len(recap.CriticalDiscoveries), MaxCriticalDiscoveries)
		assert.LessOrEqual(t, len(recap.NextSteps), MaxNextSteps)
	}

	assert.Equal(t, base, recap.ProjectStartTime)
	assert.Equal(t, base.Add(39*time.Hour+30*time.Minute), recap.LastUpdated)
	assert.Equal(t, "decision 39 b", recap.TechnicalDecisions[len(recap.TechnicalDecisions)-1])
}

func TestRecapMergeEvictsOldestDecisionsFirst(t *testing.T) {
	t.Parallel()

	recap := EmptyRecap()
	for i := 1; i <= 25; i++ {
		recap = recap.Merge(SessionKeyPoints{
			SessionID:          SessionID(fmt.Sprintf("s-%d", i)),
			TechnicalDecisions: []string{fmt.Sprintf("d%d", i)},
		})
	}

	want := make([]string, 0, 20)
	for i := 6; i <= 25; i++ {
		want = append(want, fmt.Sprintf("d%d", i))
	}

	if diff := cmp.Diff(want, recap.TechnicalDecisions); diff != "" {
		t.Fatalf("technical decisions mismatch (-want +got):\n%s", diff)
	}
}

func TestRecapMergeDeduplicatesSecurityConstraints(t *testing.T) {
	t.Parallel()

	recap := EmptyRecap()
	recap = recap.Merge(SessionKeyPoints{Security: []string{"Never touch .node-red", "Keep keys in .env"}})
	recap = recap.Merge(SessionKeyPoints{Security: []string{"Never touch .node-red", "Never touch .node-red"}})
	recap = recap.Merge(SessionKeyPoints{Security: []string{"  Keep keys in .env  ", "Git excludes secrets"}})

	assert.Equal(t, []string{"Never touch .node-red", "Keep keys in .env", "Git excludes secrets"}, recap.SecurityConstraints)
}

func TestRecapMergeReplacesLatestOnlyFields(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	recap := EmptyRecap().Merge(SessionKeyPoints{
		SessionID:    "one",
		SessionTime:  first,
		CurrentState: "prototype",
		NextSteps:    []string{"write tests"},
		Blockers:     []string{"blocked on credentials"},
	})
	recap = recap.Merge(SessionKeyPoints{
		SessionID:    "two",
		SessionTime:  second,
		CurrentState: "stable",
		NextSteps:    []string{"add metrics"},
	})

	assert.Equal(t, CurrentState{SessionID: "two", Summary: "stable", UpdatedAt: second}, recap.CurrentState)
	assert.Equal(t, []string{"add metrics"}, recap.NextSteps)
	assert.Empty(t, recap.BlockedItems)
	assert.Equal(t, first, recap.ProjectStartTime)
}

func TestRecapMergeDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	original := EmptyRecap().Merge(SessionKeyPoints{TechnicalDecisions: []string{"d1"}})
	snapshot := original.Clone()

	_ = original.Merge(SessionKeyPoints{TechnicalDecisions: []string{"d2"}, Security: []string{"s1"}})

	if diff := cmp.Diff(snapshot, original); diff != "" {
		t.Fatalf("receiver mutated (-before +after):\n%s", diff)
	}
}

func TestRecentReturnsTrailingEntries(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"c", "d"}, Recent(items, 2))
	assert.Equal(t, items, Recent(items, 10))
	assert.Nil(t, Recent(items, 0))
}

func TestNewStartContext(t *testing.T) {
	t.Parallel()

	_, fresh := NewStartContext(EmptyRecap()).(Fresh)
	assert.True(t, fresh)

	recap := EmptyRecap().Merge(SessionKeyPoints{SessionID: "one"})
	restored, ok := NewStartContext(recap).(Restored)
	require.True(t, ok)
	assert.Equal(t, 1, restored.Recap.TotalSessions)
}

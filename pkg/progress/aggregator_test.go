package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/asyncgit/pkg/progress"
)

func TestPercentZeroTotal(t *testing.T) {
	assert.Equal(t, 100, progress.Percent(1, 0))
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 20, progress.Percent(2, 10))
}

func TestPercentClampsToRange(t *testing.T) {
	assert.Equal(t, 100, progress.Percent(20, 10))
	assert.Equal(t, 0, progress.Percent(0, 10))
}

func TestAggregatePacking(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{
		Kind:    progress.KindPacking,
		Current: 5,
		Total:   10,
		Stage:   "deltafication",
	})

	assert.Equal(t, "deltafication", rp.Phase)
	assert.Equal(t, 50, rp.Percent)
}

func TestAggregateDoneIsFull(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{Kind: progress.KindDone})

	assert.Equal(t, progress.PhaseDone, rp.Phase)
	assert.Equal(t, 100, rp.Percent)
}

func TestAggregateUnknownKindIsIdle(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{Kind: progress.Kind(99)})

	assert.Equal(t, "", rp.Phase)
	assert.Equal(t, 0, rp.Percent)
}

// TestAggregateTransferZeroTotalIsFull mirrors Scenario F's first case:
// Transfer{objects: 0, total_objects: 0} reports ("Transfer", 100).
func TestAggregateTransferZeroTotalIsFull(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{Kind: progress.KindTransfer, Current: 0, Total: 0})

	assert.Equal(t, progress.PhaseTransfer, rp.Phase)
	assert.Equal(t, 100, rp.Percent)
}

// TestAggregatePushTransfer mirrors Scenario F's second case:
// PushTransfer{current: 3, total: 10, bytes: 0} reports ("Pushing", 30).
func TestAggregatePushTransfer(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{Kind: progress.KindPushTransfer, Current: 3, Total: 10, Bytes: 0})

	assert.Equal(t, progress.PhasePushTransfer, rp.Phase)
	assert.Equal(t, 30, rp.Percent)
}

// TestAggregateUpdateTipsIsFull mirrors the progress-aggregator table's
// UpdateTips row: always reported as 100% complete under its own phase name.
func TestAggregateUpdateTipsIsFull(t *testing.T) {
	rp := progress.Aggregate(progress.Notification{Kind: progress.KindUpdateTips, RefName: "refs/heads/main"})

	assert.Equal(t, progress.PhaseUpdateTips, rp.Phase)
	assert.Equal(t, 100, rp.Percent)
}

// TestAggregatePercentClamp is the property test for testable property #8:
// the aggregated percent is always in [0, 100] regardless of the kind.
func TestAggregatePercentClamp(t *testing.T) {
	kinds := []progress.Kind{
		progress.KindPacking,
		progress.KindPushTransfer,
		progress.KindTransfer,
		progress.KindUpdateTips,
		progress.KindDone,
	}

	for _, kind := range kinds {
		rp := progress.Aggregate(progress.Notification{Kind: kind, Current: 999, Total: 10})
		assert.GreaterOrEqual(t, rp.Percent, 0)
		assert.LessOrEqual(t, rp.Percent, 100)
	}
}

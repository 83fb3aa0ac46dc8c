package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateAllowsWithoutBlock(t *testing.T) {
	policy := DefaultPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, Decision{}, policy.Gate(now, nil))

	expired := now.Add(-time.Second)
	assert.Equal(t, Decision{}, policy.Gate(now, &expired))

	exact := now
	assert.Equal(t, Decision{}, policy.Gate(now, &exact), "block ending exactly now is over")
}

func TestGateBlockedSecondsRoundUp(t *testing.T) {
	policy := DefaultPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		left time.Duration
		want int64
	}{
		{"whole seconds", 60 * time.Second, 60},
		{"fraction rounds up", 59*time.Second + 200*time.Millisecond, 60},
		{"sub-second still one", 300 * time.Millisecond, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			until := now.Add(tc.left)
			decision := policy.Gate(now, &until)
			require.True(t, decision.Blocked)
			assert.Equal(t, tc.want, decision.SecondsLeft)
		})
	}
}

func TestRecordFailureBelowThreshold(t *testing.T) {
	policy := Policy{Threshold: 3, BlockFor: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := policy.RecordFailure(0, nil, now)
	assert.Equal(t, State{Attempts: 1}, state)

	state = policy.RecordFailure(state.Attempts, nil, now)
	assert.Equal(t, State{Attempts: 2}, state)
}

func TestRecordFailureImposesBlockAtThreshold(t *testing.T) {
	policy := Policy{Threshold: 3, BlockFor: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := policy.RecordFailure(2, nil, now)
	require.NotNil(t, state.BlockedUntil)
	assert.Equal(t, 0, state.Attempts, "counter resets when the block is imposed")
	assert.Equal(t, now.Add(time.Minute), *state.BlockedUntil)
}

func TestRecordFailureAboveThresholdStillBlocks(t *testing.T) {
	policy := Policy{Threshold: 3, BlockFor: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := policy.RecordFailure(7, nil, now)
	require.NotNil(t, state.BlockedUntil)
	assert.Equal(t, 0, state.Attempts)
}

func TestRecordFailureKeepsStaleBlockTimestamp(t *testing.T) {
	policy := Policy{Threshold: 3, BlockFor: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-time.Hour)

	state := policy.RecordFailure(0, &stale, now)
	assert.Equal(t, 1, state.Attempts)
	require.NotNil(t, state.BlockedUntil)
	assert.Equal(t, stale, *state.BlockedUntil, "an expired timestamp is carried, not refreshed")
}

func TestRecordSuccess(t *testing.T) {
	state := RecordSuccess()
	assert.Equal(t, 0, state.Attempts)
	assert.Nil(t, state.BlockedUntil)
}

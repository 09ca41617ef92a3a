package session

import (
	"testing"
	"time"

	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDrivesThroughAllStages(t *testing.T) {
	e, clock := newTestEngine(t, fourStages(t))

	for elapsed := 5 * time.Second; elapsed <= 31*time.Second; elapsed += 5 * time.Second {
		clock.Advance(5 * time.Second)
		e.Poll()
	}
	clock.Advance(time.Second) // t=31s
	e.Poll()

	assert.Equal(t, "D", e.Stage())
	assert.Equal(t, 3, e.ForcedTransitionCount())
	assert.Equal(t, 3, e.TransitionCount())
	assert.False(t, e.Ended())
}

func TestTimerForcesExactlyOnce(t *testing.T) {
	c, err := stage.New([]stage.Stage{
		{Name: "talk", TimeLimit: 60 * time.Second, MinInteractions: 2},
		{Name: "deep_dive", TimeLimit: 10 * time.Minute, MinInteractions: 2},
		{Name: "end", TimeLimit: time.Minute},
	}, 0, "")
	require.NoError(t, err)
	e, clock := newTestEngine(t, c)

	clock.Advance(61 * time.Second)
	forced := 0
	for polled := time.Duration(0); polled <= 120*time.Second; polled += 5 * time.Second {
		if res := e.Poll(); res.Forced != nil {
			forced++
			assert.Equal(t, "talk", res.Forced.From)
			assert.Equal(t, "deep_dive", res.Forced.To)
		}
		clock.Advance(5 * time.Second)
	}

	assert.Equal(t, 1, forced)
	assert.Equal(t, 1, e.TransitionCount())
	assert.Equal(t, 1, e.ForcedTransitionCount())
	assert.Equal(t, "deep_dive", e.Stage())
}

func TestTimerMilestonesOncePerVisit(t *testing.T) {
	e, clock := newTestEngine(t, fourStages(t))

	clock.Advance(5 * time.Second)
	assert.Equal(t, []int{50}, e.Poll().Milestones)
	assert.Empty(t, e.Poll().Milestones)

	clock.Advance(4 * time.Second)
	res := e.Poll()
	assert.Equal(t, []int{75, 90}, res.Milestones)
	assert.Nil(t, res.Forced)
	snap := e.Snapshot("s1")
	assert.Equal(t, "B", snap.PendingTransition)
	assert.NotEmpty(t, snap.PendingReason)

	clock.Advance(time.Second)
	res = e.Poll()
	assert.Equal(t, []int{100}, res.Milestones)
	require.NotNil(t, res.Forced)
	assert.Equal(t, "B", e.Stage())
	assert.Empty(t, e.Snapshot("s1").PendingTransition)

	// new stage visit starts a fresh milestone set
	clock.Advance(6 * time.Second)
	assert.Equal(t, []int{50}, e.Poll().Milestones)
}

func TestTimerSkipsUnmonitoredStages(t *testing.T) {
	c, err := stage.New([]stage.Stage{
		{Name: "greeting", TimeLimit: 10 * time.Second},
		{Name: "talk", TimeLimit: 10 * time.Second, MinInteractions: 1},
		{Name: "end", TimeLimit: 10 * time.Second},
	}, 0, "")
	require.NoError(t, err)
	e, clock := newTestEngine(t, c)

	clock.Advance(time.Hour)
	res := e.Poll()
	assert.Nil(t, res.Forced)
	assert.Empty(t, res.Milestones)
	assert.Equal(t, "greeting", e.Stage())
}

func TestClosingTimeoutEndsSession(t *testing.T) {
	e, clock := newTestEngine(t, fourStages(t))
	for range 3 {
		_, err := e.ForceTransition("")
		require.NoError(t, err)
	}
	require.True(t, e.MarkClosingInitiated())

	clock.Advance(14 * time.Second)
	res := e.Poll()
	assert.False(t, res.Stopped)
	assert.False(t, e.Ended())

	clock.Advance(time.Second)
	res = e.Poll()
	assert.True(t, res.Stopped)
	assert.Equal(t, "Thanks Ada, that is all for today.", res.Fallback)
	assert.True(t, e.Ended())
	assert.Equal(t, ReasonClosingTimeout, e.EndReason())

	res = e.Poll()
	assert.True(t, res.Stopped)
	assert.Empty(t, res.Fallback)
}

func TestClosingDeliveredCompletesSession(t *testing.T) {
	e, clock := newTestEngine(t, fourStages(t))
	assert.False(t, e.MarkClosingDelivered(), "only the terminal stage can deliver a closing")

	for range 3 {
		_, err := e.ForceTransition("")
		require.NoError(t, err)
	}
	require.True(t, e.MarkClosingDelivered())
	assert.Equal(t, ReasonCompleted, e.EndReason())

	clock.Advance(time.Minute)
	res := e.Poll()
	assert.True(t, res.Stopped)
	assert.Empty(t, res.Fallback)
}

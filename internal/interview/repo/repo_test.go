package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func turn(role model.Role, text, stage string) model.Turn {
	return model.Turn{Role: role, Text: text, Stage: stage, Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestTranscriptRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewRedisTranscriptRepository(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.AddTurn(ctx, "s1", turn(model.RoleInterviewer, "Welcome!", "welcome")))
	require.NoError(t, repo.AddTurn(ctx, "s1", turn(model.RoleCandidate, "Hi there", "welcome")))
	require.NoError(t, repo.AddTurn(ctx, "s1", turn(model.RoleInterviewer, "Tell me about you", "self_intro")))

	all, err := repo.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Welcome!", all[0].Text)
	assert.Equal(t, "self_intro", all[2].Stage)
	assert.Equal(t, model.RoleCandidate, all[1].Role)

	recent, err := repo.LoadRecent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Hi there", recent[0].Text)

	n, err := repo.TurnCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, time.Hour, mr.TTL("interview:s1:transcript"))
}

func TestTranscriptMissingSession(t *testing.T) {
	_, rdb := newRedis(t)
	repo := NewRedisTranscriptRepository(rdb, 0)
	ctx := context.Background()

	turns, err := repo.LoadTranscript(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = repo.LoadRecent(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	summary, err := repo.LoadSummary(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestTranscriptCorruptRow(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewRedisTranscriptRepository(rdb, 0)

	_, err := mr.RPush("interview:s1:transcript", "{not json")
	require.NoError(t, err)

	_, err = repo.LoadTranscript(context.Background(), "s1")
	assert.Error(t, err)
}

func TestSummaryRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewRedisTranscriptRepository(rdb, 2*time.Hour)
	ctx := context.Background()

	want := model.Summary{
		SessionID:         "s1",
		CandidateName:     "Ada",
		FinalStage:        "closing",
		EndedBy:           "completed",
		SkippedStages:     []string{"company_fit"},
		TransitionCount:   4,
		ForcedTransitions: 1,
		HasResume:         true,
		StartedAt:         time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:           time.Date(2025, 3, 1, 9, 12, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveSummary(ctx, want))

	got, err := repo.LoadSummary(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
	assert.Equal(t, 2*time.Hour, mr.TTL("interview:s1:summary"))
}

func TestRedisNotifierPublishes(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	n := NewRedisNotifier(rdb, "")
	assert.Equal(t, DefaultEventChannel, n.Channel())

	sub := rdb.Subscribe(ctx, n.Channel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx, model.Event{Type: model.EventStageChange, SessionID: "s1", Stage: "self_intro"}))

	select {
	case msg := <-sub.Channel():
		var ev model.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "stage_change", ev.Type)
		assert.Equal(t, "self_intro", ev.Stage)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

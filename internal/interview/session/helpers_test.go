package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// fourStages is A, B, C each with a 10s budget and one required question, then terminal D.
func fourStages(t *testing.T) *stage.Catalog {
	t.Helper()
	c, err := stage.New([]stage.Stage{
		{Name: "A", TimeLimit: 10 * time.Second, MinInteractions: 1, Ack: "Now A."},
		{Name: "B", TimeLimit: 10 * time.Second, MinInteractions: 1, Ack: "Now B, {candidate_name}.", FallbackAck: "Time is up, moving to B."},
		{Name: "C", TimeLimit: 10 * time.Second, MinInteractions: 1, Ack: "Now C."},
		{Name: "D", TimeLimit: 20 * time.Second},
	}, 15*time.Second, "Thanks {candidate_name}, that is all for today.")
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, c *stage.Catalog) (*Engine, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	return NewEngine(c, clock, stage.Vars{CandidateName: "Ada", JobRole: "SRE"}, zerolog.Nop()), clock
}

type fakeSpeaker struct {
	mu   sync.Mutex
	err  error
	said []string
}

func (f *fakeSpeaker) Speak(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.said = append(f.said, text)
	return nil
}

func (f *fakeSpeaker) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSpeaker) Said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	events []model.Event
}

func (f *fakeNotifier) Notify(_ context.Context, ev model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeNotifier) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeNotifier) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type+":"+ev.Stage)
	}
	return out
}

type memoryTranscripts struct {
	mu        sync.Mutex
	turns     map[string][]model.Turn
	summaries map[string]model.Summary
}

func newMemoryTranscripts() *memoryTranscripts {
	return &memoryTranscripts{turns: map[string][]model.Turn{}, summaries: map[string]model.Summary{}}
}

func (m *memoryTranscripts) AddTurn(_ context.Context, id string, turn model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[id] = append(m.turns[id], turn)
	return nil
}

func (m *memoryTranscripts) LoadTranscript(_ context.Context, id string) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Turn(nil), m.turns[id]...), nil
}

func (m *memoryTranscripts) LoadRecent(ctx context.Context, id string, n int) ([]model.Turn, error) {
	all, _ := m.LoadTranscript(ctx, id)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (m *memoryTranscripts) SaveSummary(_ context.Context, s model.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.SessionID] = s
	return nil
}

func (m *memoryTranscripts) LoadSummary(_ context.Context, id string) (*model.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions []string
	rejections  []string
	milestones  []int
	acks        []string
	ended       []string
}

func (r *countingRecorder) TransitionCommitted(from, to, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+">"+to+":"+kind)
}

func (r *countingRecorder) OperationRejected(op, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, op+":"+reason)
}

func (r *countingRecorder) MilestoneReached(_ string, pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.milestones = append(r.milestones, pct)
}

func (r *countingRecorder) AckDelivered(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, path)
}

func (r *countingRecorder) SpeakFailed()    {}
func (r *countingRecorder) SessionStarted() {}

func (r *countingRecorder) SessionEnded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, reason)
}

package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
)

const DefaultHistoryTurns = 12

// silenceCue stands in for the candidate when the interviewer has to speak first.
const silenceCue = "[The candidate is waiting for you. Continue the interview.]"

type MessagesManager struct {
	transcripts model.TranscriptRepository
	maxTurns    int
}

func NewMessagesManager(transcripts model.TranscriptRepository, historyTurns int) *MessagesManager {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &MessagesManager{
		transcripts: transcripts,
		maxTurns:    historyTurns,
	}
}

// BuildContext returns the system prompt followed by the most recent transcript turns.
// The last message is always from the user side, as chat models expect.
func (cm *MessagesManager) BuildContext(ctx context.Context, sessionID, systemPrompt string) ([]*schema.Message, error) {
	turns, err := cm.transcripts.LoadRecent(ctx, sessionID, cm.maxTurns)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(turns)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, toMessages(turns)...)

	if last := messages[len(messages)-1]; last.Role != schema.User {
		messages = append(messages, schema.UserMessage(silenceCue))
	}
	return messages, nil
}

func toMessages(turns []model.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		switch t.Role {
		case model.RoleCandidate:
			out = append(out, schema.UserMessage(text))
		case model.RoleInterviewer:
			out = append(out, schema.AssistantMessage(text, nil))
		}
	}
	return out
}

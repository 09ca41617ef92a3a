package api

import (
	"context"
	"errors"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
)

// HubSpeaker speaks through the voice client attached to the session's websocket.
// With nobody attached it reports model.ErrSpeakerBusy, which leaves acknowledgements for the relay.
type HubSpeaker struct {
	hub *Hub
}

func NewHubSpeaker(hub *Hub) *HubSpeaker {
	return &HubSpeaker{hub: hub}
}

func (s *HubSpeaker) Speak(ctx context.Context, sessionID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.hub.HasActiveConnections(sessionID) {
		return model.ErrSpeakerBusy
	}
	return s.hub.BroadcastJSON(sessionID, SpeakMessage{Type: TypeSpeak, SessionID: sessionID, Text: text})
}

// HubNotifier forwards session events to the session's websocket observers.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(ctx context.Context, event model.Event) error {
	return n.hub.BroadcastJSON(event.SessionID, event)
}

// FanoutNotifier delivers every event to all of its notifiers and joins their errors.
type FanoutNotifier []model.Notifier

func (f FanoutNotifier) Notify(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package sse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// Publisher relays payloads to the same fan-out on other instances.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type stateMessage struct {
	UserID uuid.UUID          `json:"userId"`
	State  *dispute.UserState `json:"state"`
}

// Fanout delivers projected state to local stream clients and, when a
// publisher is configured, to every other instance's clients too.
type Fanout struct {
	hub       *Hub
	publisher Publisher
	logger    zerolog.Logger
}

func NewFanout(hub *Hub, publisher Publisher, logger zerolog.Logger) *Fanout {
	return &Fanout{
		hub:       hub,
		publisher: publisher,
		logger:    logger.With().Str("component", "fanout").Logger(),
	}
}

// NotifyState implements the orchestrator's state notifier.
func (f *Fanout) NotifyState(userID uuid.UUID, state *dispute.UserState) {
	msg := stateMessage{UserID: userID, State: state}
	payload, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error().Err(err).Msg("marshal state message")
		return
	}
	f.deliverLocal(msg.UserID, payload)

	if f.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f.publisher.Publish(ctx, payload); err != nil {
			f.logger.Warn().Err(err).Msg("cross-instance publish failed")
		}
	}()
}

// HandleRemote delivers a payload published by another instance to this
// instance's local clients.
func (f *Fanout) HandleRemote(payload []byte) {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.logger.Warn().Err(err).Msg("dropping malformed remote state message")
		return
	}
	f.deliverLocal(msg.UserID, payload)
}

func (f *Fanout) deliverLocal(userID uuid.UUID, payload []byte) {
	f.hub.Send(userID, payload)
}

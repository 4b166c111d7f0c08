package sse

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accord-app/accord/internal/domain/dispute"
)

func TestHubSendReachesEveryConnection(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()
	userID := uuid.New()

	a := hub.Register(userID)
	b := hub.Register(userID)
	require.Equal(t, 2, hub.ConnectionCount(userID))

	hub.Send(userID, []byte("hello"))
	assert.Equal(t, []byte("hello"), <-a.Messages)
	assert.Equal(t, []byte("hello"), <-b.Messages)

	// Other users receive nothing.
	other := hub.Register(uuid.New())
	hub.Send(userID, []byte("again"))
	select {
	case msg := <-other.Messages:
		t.Fatalf("unexpected message for other user: %s", msg)
	default:
	}
}

func TestHubSkipsSlowClients(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()
	userID := uuid.New()
	client := hub.Register(userID)

	for i := 0; i < clientBuffer+10; i++ {
		hub.Send(userID, []byte("x"))
	}
	// The buffer capped out; Send never blocked.
	assert.Equal(t, clientBuffer, len(client.Messages))
}

func TestHubLastDropCallback(t *testing.T) {
	var mu sync.Mutex
	var dropped []uuid.UUID
	hub := NewHub(func(userID uuid.UUID) {
		mu.Lock()
		defer mu.Unlock()
		dropped = append(dropped, userID)
	})
	defer hub.Stop()
	userID := uuid.New()

	a := hub.Register(userID)
	b := hub.Register(userID)

	hub.Unregister(a)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, dropped)
	mu.Unlock()

	hub.Unregister(b)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 1 && dropped[0] == userID
	}, time.Second, 10*time.Millisecond)

	// Unregistering twice never double-fires.
	hub.Unregister(b)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Len(t, dropped, 1)
	mu.Unlock()
}

// capturePublisher records published payloads.
type capturePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *capturePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func TestFanoutDeliversLocallyAndPublishes(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()
	pub := &capturePublisher{}
	fanout := NewFanout(hub, pub, zerolog.Nop())
	userID := uuid.New()
	client := hub.Register(userID)

	fanout.NotifyState(userID, &dispute.UserState{Phase: dispute.PhaseIdle, ViewPhase: dispute.ViewIdle})

	payload := <-client.Messages
	var msg stateMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, userID, msg.UserID)
	assert.Equal(t, dispute.PhaseIdle, msg.State.Phase)

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestFanoutHandleRemote(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()
	fanout := NewFanout(hub, nil, zerolog.Nop())
	userID := uuid.New()
	client := hub.Register(userID)

	payload, err := json.Marshal(stateMessage{
		UserID: userID,
		State:  &dispute.UserState{Phase: dispute.PhaseEvidence, ViewPhase: dispute.ViewEvidenceSubmit},
	})
	require.NoError(t, err)

	fanout.HandleRemote(payload)
	assert.Equal(t, payload, <-client.Messages)

	// Malformed payloads are dropped without panicking.
	fanout.HandleRemote([]byte("not json"))
}

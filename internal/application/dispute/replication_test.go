package dispute

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

// capturePub records every published change payload.
type capturePub struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *capturePub) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return nil
}

func (p *capturePub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func (p *capturePub) last(t *testing.T) ChangeEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.payloads)
	var ev ChangeEvent
	require.NoError(t, json.Unmarshal(p.payloads[len(p.payloads)-1], &ev))
	return ev
}

// memoryCheckpoints is an in-memory checkpoint table.
type memoryCheckpoints struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*dispute.Session
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{rows: make(map[uuid.UUID]*dispute.Session)}
}

func (m *memoryCheckpoints) Upsert(ctx context.Context, sess *dispute.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[sess.SessionID] = sess.Clone()
	return nil
}

func (m *memoryCheckpoints) Delete(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, sessionID)
	return nil
}

func (m *memoryCheckpoints) Load(ctx context.Context, sessionID uuid.UUID) (*dispute.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.rows[sessionID]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

func (m *memoryCheckpoints) LoadAll(ctx context.Context) ([]*dispute.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*dispute.Session, 0, len(m.rows))
	for _, sess := range m.rows {
		out = append(out, sess.Clone())
	}
	return out, nil
}

func TestChangeRelayPublishesMutations(t *testing.T) {
	pub := &capturePub{}
	store := NewStore(ChangeRelay(pub, zerolog.Nop()))
	sess := dispute.NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	require.NoError(t, store.Put(sess))
	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	ev := pub.last(t)
	assert.Equal(t, ChangeUpsert, ev.Kind)
	assert.Equal(t, sess.CoupleID, ev.CoupleID)
	assert.Equal(t, sess.SessionID, ev.SessionID)
	assert.ElementsMatch(t, []uuid.UUID{sess.CreatorID, sess.PartnerID}, ev.UserIDs)

	store.Delete(sess.CoupleID)
	require.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, ChangeDelete, pub.last(t).Kind)
}

func TestRemoteUpsertHydratesFromCheckpoint(t *testing.T) {
	checkpoints := newMemoryCheckpoints()
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	svc := NewService(NewStore(nil), sched, nil, nil, nil, checkpoints, nil, nil, nil, nil,
		testConfig(), zerolog.Nop())

	creator, partner := uuid.New(), uuid.New()
	sess := dispute.NewSession(creator, partner, time.Now().UTC())
	sess.Phase = dispute.PhaseEvidence
	require.NoError(t, checkpoints.Upsert(context.Background(), sess))

	payload, err := json.Marshal(ChangeEvent{
		Kind:      ChangeUpsert,
		CoupleID:  sess.CoupleID,
		SessionID: sess.SessionID,
		UserIDs:   []uuid.UUID{creator, partner},
	})
	require.NoError(t, err)
	svc.HandleRemoteChange(payload)

	assert.Equal(t, dispute.PhaseEvidence, phaseOf(t, svc, creator))
	assert.True(t, svc.sched.Armed(sess.SessionID, TimerEvidence))
}

func TestRemoteUpsertWithoutCheckpointIgnored(t *testing.T) {
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	svc := NewService(NewStore(nil), sched, nil, nil, nil, newMemoryCheckpoints(), nil, nil, nil, nil,
		testConfig(), zerolog.Nop())

	svc.ApplyRemoteChange(context.Background(), ChangeEvent{
		Kind:      ChangeUpsert,
		CoupleID:  "a::b",
		SessionID: uuid.New(),
	})
	assert.Equal(t, 0, svc.store.Len())
}

func TestRemoteDeleteEvictsWithoutRepublish(t *testing.T) {
	pub := &capturePub{}
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	store := NewStore(ChangeRelay(pub, zerolog.Nop()))
	svc := NewService(store, sched, nil, nil, nil, nil, nil, nil, nil, nil,
		testConfig(), zerolog.Nop())

	creator, partner := uuid.New(), uuid.New()
	sess := dispute.NewSession(creator, partner, time.Now().UTC())
	store.Hydrate(sess)
	svc.armPhaseTimer(sess)

	svc.ApplyRemoteChange(context.Background(), ChangeEvent{
		Kind:      ChangeDelete,
		CoupleID:  sess.CoupleID,
		SessionID: sess.SessionID,
		UserIDs:   []uuid.UUID{creator, partner},
	})

	assert.Equal(t, dispute.PhaseIdle, phaseOf(t, svc, creator))
	assert.False(t, svc.sched.Armed(sess.SessionID, TimerPending))
	// Applying a peer's delete must not echo another delete back out.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, pub.count())
}

func TestRemoteChangeDropsMalformedPayload(t *testing.T) {
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	svc := NewService(NewStore(nil), sched, nil, nil, nil, nil, nil, nil, nil, nil,
		testConfig(), zerolog.Nop())

	svc.HandleRemoteChange([]byte("{"))
	assert.Equal(t, 0, svc.store.Len())
}

package dispute

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accord-app/accord/internal/domain/dispute"
)

func TestStorePutAndLookup(t *testing.T) {
	st := NewStore(nil)
	creator, partner := uuid.New(), uuid.New()
	sess := dispute.NewSession(creator, partner, time.Now().UTC())

	require.NoError(t, st.Put(sess))
	assert.Same(t, sess, st.GetByCouple(sess.CoupleID))
	assert.Same(t, sess, st.GetByUser(creator))
	assert.Same(t, sess, st.GetByUser(partner))
	assert.Equal(t, 1, st.Len())
}

func TestStoreRejectsBusyParticipant(t *testing.T) {
	st := NewStore(nil)
	creator, partner := uuid.New(), uuid.New()
	require.NoError(t, st.Put(dispute.NewSession(creator, partner, time.Now().UTC())))

	err := st.Put(dispute.NewSession(creator, uuid.New(), time.Now().UTC()))
	assert.ErrorIs(t, err, dispute.ErrSessionExists)
	err = st.Put(dispute.NewSession(uuid.New(), partner, time.Now().UTC()))
	assert.ErrorIs(t, err, dispute.ErrSessionExists)
}

func TestStoreDeleteClearsIndexes(t *testing.T) {
	st := NewStore(nil)
	creator, partner := uuid.New(), uuid.New()
	sess := dispute.NewSession(creator, partner, time.Now().UTC())
	require.NoError(t, st.Put(sess))

	st.Delete(sess.CoupleID)
	assert.Nil(t, st.GetByCouple(sess.CoupleID))
	assert.Nil(t, st.GetByUser(creator))
	assert.Nil(t, st.GetByUser(partner))

	// Both participants are free again.
	require.NoError(t, st.Put(dispute.NewSession(creator, uuid.New(), time.Now().UTC())))
}

func TestStoreChangeEvents(t *testing.T) {
	var events []ChangeEvent
	st := NewStore(func(ev ChangeEvent) { events = append(events, ev) })
	sess := dispute.NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	require.NoError(t, st.Put(sess))
	st.Touch(sess)
	st.Delete(sess.CoupleID)
	st.Delete(sess.CoupleID) // no event for a missing couple

	require.Len(t, events, 3)
	assert.Equal(t, ChangeUpsert, events[0].Kind)
	assert.Equal(t, ChangeUpsert, events[1].Kind)
	assert.Equal(t, ChangeDelete, events[2].Kind)
	assert.Equal(t, sess.SessionID, events[2].SessionID)
	assert.ElementsMatch(t, []uuid.UUID{sess.CreatorID, sess.PartnerID}, events[2].UserIDs)
}

func TestStoreEvictIsSilent(t *testing.T) {
	var events []ChangeEvent
	st := NewStore(func(ev ChangeEvent) { events = append(events, ev) })
	sess := dispute.NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	st.Hydrate(sess)
	st.Evict(sess.CoupleID)
	st.Evict(sess.CoupleID)
	assert.Empty(t, events)
	assert.Nil(t, st.GetByUser(sess.CreatorID))
	assert.Nil(t, st.GetByUser(sess.PartnerID))
}

func TestStoreHydrateIsSilent(t *testing.T) {
	var events []ChangeEvent
	st := NewStore(func(ev ChangeEvent) { events = append(events, ev) })
	sess := dispute.NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	st.Hydrate(sess)
	assert.Empty(t, events)
	assert.Same(t, sess, st.GetByUser(sess.CreatorID))

	// Hydrating a newer copy replaces the stale one.
	fresh := sess.Clone()
	fresh.Phase = dispute.PhaseEvidence
	st.Hydrate(fresh)
	assert.Same(t, fresh, st.GetByCouple(sess.CoupleID))
}

package dispute

import (
	"sync"

	"github.com/google/uuid"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// ChangeKind tags store change events.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "UPSERT"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is published after every store mutation so peer instances
// can hydrate their own tables from the shared checkpoint rows.
type ChangeEvent struct {
	Kind      ChangeKind  `json:"kind"`
	CoupleID  string      `json:"coupleId"`
	SessionID uuid.UUID   `json:"sessionId"`
	UserIDs   []uuid.UUID `json:"userIds"`
}

// Store is the in-memory session table: one session per couple, plus a
// user→couple index. It is an injected, explicitly owned object; never a
// package-level singleton.
type Store struct {
	mu       sync.RWMutex
	byCouple map[string]*dispute.Session
	byUser   map[uuid.UUID]string
	onChange func(ChangeEvent)
}

// NewStore creates an empty store. onChange may be nil.
func NewStore(onChange func(ChangeEvent)) *Store {
	return &Store{
		byCouple: make(map[string]*dispute.Session),
		byUser:   make(map[uuid.UUID]string),
		onChange: onChange,
	}
}

// Put inserts a new session. It enforces that neither participant is
// already indexed into another active session.
func (st *Store) Put(session *dispute.Session) error {
	st.mu.Lock()
	if _, ok := st.byCouple[session.CoupleID]; ok {
		st.mu.Unlock()
		return dispute.ErrSessionExists
	}
	for _, userID := range []uuid.UUID{session.CreatorID, session.PartnerID} {
		if existing, ok := st.byUser[userID]; ok && existing != session.CoupleID {
			st.mu.Unlock()
			return dispute.ErrSessionExists
		}
	}
	st.byCouple[session.CoupleID] = session
	st.byUser[session.CreatorID] = session.CoupleID
	st.byUser[session.PartnerID] = session.CoupleID
	st.mu.Unlock()

	st.publish(ChangeEvent{
		Kind:      ChangeUpsert,
		CoupleID:  session.CoupleID,
		SessionID: session.SessionID,
		UserIDs:   []uuid.UUID{session.CreatorID, session.PartnerID},
	})
	return nil
}

// Touch republishes a change event for an already stored session. Callers
// use it after mutating session fields in place.
func (st *Store) Touch(session *dispute.Session) {
	st.publish(ChangeEvent{
		Kind:      ChangeUpsert,
		CoupleID:  session.CoupleID,
		SessionID: session.SessionID,
		UserIDs:   []uuid.UUID{session.CreatorID, session.PartnerID},
	})
}

// GetByCouple returns the session for a couple id, or nil.
func (st *Store) GetByCouple(coupleID string) *dispute.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.byCouple[coupleID]
}

// GetByUser returns the active session containing userID, or nil.
func (st *Store) GetByUser(userID uuid.UUID) *dispute.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	coupleID, ok := st.byUser[userID]
	if !ok {
		return nil
	}
	return st.byCouple[coupleID]
}

// Delete removes the session and both user index entries.
func (st *Store) Delete(coupleID string) {
	st.mu.Lock()
	session, ok := st.byCouple[coupleID]
	if !ok {
		st.mu.Unlock()
		return
	}
	delete(st.byCouple, coupleID)
	delete(st.byUser, session.CreatorID)
	delete(st.byUser, session.PartnerID)
	st.mu.Unlock()

	st.publish(ChangeEvent{
		Kind:      ChangeDelete,
		CoupleID:  coupleID,
		SessionID: session.SessionID,
		UserIDs:   []uuid.UUID{session.CreatorID, session.PartnerID},
	})
}

// Evict removes the session and both user index entries without publishing
// a change event. Used when applying a delete that originated elsewhere.
func (st *Store) Evict(coupleID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.byCouple[coupleID]
	if !ok {
		return
	}
	delete(st.byCouple, coupleID)
	delete(st.byUser, session.CreatorID)
	delete(st.byUser, session.PartnerID)
}

// Hydrate installs a recovered session without publishing a change event,
// replacing any stale copy for the same couple.
func (st *Store) Hydrate(session *dispute.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byCouple[session.CoupleID] = session
	st.byUser[session.CreatorID] = session.CoupleID
	st.byUser[session.PartnerID] = session.CoupleID
}

// Len reports the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byCouple)
}

func (st *Store) publish(ev ChangeEvent) {
	if st.onChange != nil {
		st.onChange(ev)
	}
}

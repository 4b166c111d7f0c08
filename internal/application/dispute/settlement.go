package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// RequestSettlement opens the amicable early-exit side channel. Valid only
// while evidence is being gathered or analyzed.
func (s *Service) RequestSettlement(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhaseEvidence && sess.Phase != dispute.PhaseAnalyzing {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.SettlementRequestedBy != nil {
		return nil, fmt.Errorf("settlement already requested")
	}

	now := time.Now().UTC()
	requester := userID
	sess.SettlementRequestedBy = &requester
	sess.SettlementRequestedAt = &now

	sessionID, coupleID := sess.SessionID, sess.CoupleID
	s.sched.Schedule(sessionID, TimerSettlement, s.cfg.SettlementTimeout, func() {
		s.onSettlementTimeout(sessionID, coupleID)
	})

	s.persist(sess)
	s.fanout(sess)
	s.push(ctx, sess.OtherParty(userID), "Settlement offered", "Your partner offered to settle the dispute")
	return sess.StateFor(userID), nil
}

// AcceptSettlement ends the session amicably, with no verdict.
func (s *Service) AcceptSettlement(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.SettlementRequestedBy == nil {
		return nil, dispute.ErrNoSettlement
	}
	if *sess.SettlementRequestedBy == userID {
		return nil, dispute.ErrSettlementSelf
	}

	requester := *sess.SettlementRequestedBy
	s.teardown(ctx, sess, "settled")
	s.push(ctx, requester, "Settlement accepted", "Your partner accepted the settlement")
	return idleState(), nil
}

// DeclineSettlement rejects a pending settlement offer; the session
// continues unchanged.
func (s *Service) DeclineSettlement(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.SettlementRequestedBy == nil {
		return nil, dispute.ErrNoSettlement
	}
	if *sess.SettlementRequestedBy == userID {
		return nil, dispute.ErrSettlementSelf
	}

	requester := *sess.SettlementRequestedBy
	s.clearSettlement(sess)
	s.persist(sess)
	s.fanout(sess)
	s.push(ctx, requester, "Settlement declined", "Your partner declined the settlement")
	return sess.StateFor(userID), nil
}

func (s *Service) clearSettlement(sess *dispute.Session) {
	sess.SettlementRequestedBy = nil
	sess.SettlementRequestedAt = nil
	s.sched.Cancel(sess.SessionID, TimerSettlement)
}

// onSettlementTimeout expires an unanswered settlement offer.
func (s *Service) onSettlementTimeout(sessionID uuid.UUID, coupleID string) {
	if s.coord != nil && !s.coord.IsOwner(sessionID) {
		return
	}
	unlock := s.lockCouple(coupleID)
	defer unlock()
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID || sess.SettlementRequestedBy == nil {
		return
	}
	sess.SettlementRequestedBy = nil
	sess.SettlementRequestedAt = nil
	s.logger.Info().Str("session_id", sessionID.String()).Msg("settlement offer expired")
	s.persist(sess)
	s.fanout(sess)
}

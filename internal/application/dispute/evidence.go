package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// SubmitEvidence records one party's private input. The second submission
// advances to ANALYZING and starts the verdict pipeline.
func (s *Service) SubmitEvidence(ctx context.Context, userID uuid.UUID, evidence, feelings, needs string) (*dispute.UserState, error) {
	if evidence == "" {
		return nil, fmt.Errorf("evidence text is required")
	}
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhaseEvidence {
		return nil, dispute.ErrPhaseMismatch
	}
	party := sess.Party(userID)
	if party.EvidenceSubmitted {
		return nil, dispute.ErrAlreadySubmitted
	}

	now := time.Now().UTC()
	party.Evidence = evidence
	party.Feelings = feelings
	party.Needs = needs
	party.EvidenceSubmitted = true
	party.SubmittedAt = &now

	if sess.BothEvidenceSubmitted() {
		if err := s.advance(sess, dispute.PhaseAnalyzing); err != nil {
			return nil, err
		}
		go s.runPipeline(sess.SessionID, sess.CoupleID, "")
	}
	s.persist(sess)
	s.fanout(sess)
	return sess.StateFor(userID), nil
}

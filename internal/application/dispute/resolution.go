package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/accord-app/accord/internal/domain/dispute"
	"github.com/accord-app/accord/internal/domain/usage"
)

// SubmitResolutionPick records a resolution choice. Matching picks finalize
// immediately; divergent picks open the mismatch renegotiation, where the
// first re-pick locks its resolution for both parties.
func (s *Service) SubmitResolutionPick(ctx context.Context, userID uuid.UUID, resolutionID string) (*dispute.UserState, error) {
	sess, unlock, release, err := s.sessionForPick(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	defer unlock()

	if sess.Phase != dispute.PhaseResolution {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.FinalResolution != nil {
		return nil, dispute.ErrFinalized
	}
	res := sess.ResolutionByID(resolutionID)
	if res == nil {
		return nil, dispute.ErrUnknownResolution
	}

	role := sess.RoleOf(userID)
	if sess.Mismatch != nil {
		if err := s.applyMismatchPick(sess, role, res); err != nil {
			return nil, err
		}
	} else {
		sess.SetPick(role, res.ID)
		other := sess.PickOf(otherRole(role))
		switch {
		case other == "":
			// First pick; wait for the partner.
		case other == res.ID:
			if err := s.finalizeResolution(ctx, sess, res); err != nil {
				return nil, err
			}
		default:
			// Entering renegotiation invalidates any hybrid left over from
			// an earlier round.
			sess.HybridResolution = nil
			sess.HybridPending = false
			sess.Mismatch = &dispute.MismatchState{
				OriginalCreatorPick: sess.CreatorPick,
				OriginalPartnerPick: sess.PartnerPick,
			}
		}
	}

	s.persist(sess)
	s.fanout(sess)
	return sess.StateFor(userID), nil
}

// applyMismatchPick runs the renegotiation protocol: the first re-picker
// becomes the lock holder, and everyone else must match the locked
// resolution or yield.
func (s *Service) applyMismatchPick(sess *dispute.Session, role dispute.Role, res *dispute.Resolution) error {
	m := sess.Mismatch
	if m.LockedResolutionID != "" && m.LockedBy != role && res.ID != m.LockedResolutionID {
		return dispute.ErrMismatchLocked
	}
	if role == dispute.RoleCreator {
		m.CreatorPick = res.ID
	} else {
		m.PartnerPick = res.ID
	}
	if m.LockedResolutionID == "" || m.LockedBy == role {
		m.LockedResolutionID = res.ID
		m.LockedBy = role
	}
	if m.CreatorPick != "" && m.CreatorPick == m.PartnerPick {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.finalizeResolution(ctx, sess, res)
	}
	return nil
}

// AcceptPartnerResolution yields to the partner's current pick, bypassing
// the mismatch lock entirely.
func (s *Service) AcceptPartnerResolution(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, release, err := s.sessionForPick(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	defer unlock()

	if sess.Phase != dispute.PhaseResolution {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.FinalResolution != nil {
		return nil, dispute.ErrFinalized
	}
	pickID := partnerPickOf(sess, userID)
	if pickID == "" {
		return nil, dispute.ErrNoPartnerPick
	}
	res := sess.ResolutionByID(pickID)
	if res == nil {
		return nil, dispute.ErrUnknownResolution
	}

	role := sess.RoleOf(userID)
	if sess.Mismatch != nil {
		m := sess.Mismatch
		if role == dispute.RoleCreator {
			m.CreatorPick = pickID
		} else {
			m.PartnerPick = pickID
		}
	} else {
		sess.SetPick(role, pickID)
	}
	if err := s.finalizeResolution(ctx, sess, res); err != nil {
		return nil, err
	}
	s.persist(sess)
	s.fanout(sess)
	return sess.StateFor(userID), nil
}

// RequestHybridResolution asks the engine for a compromise between the two
// divergent picks. Only valid during an active mismatch.
func (s *Service) RequestHybridResolution(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhaseResolution {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.Mismatch == nil {
		return nil, dispute.ErrNoMismatch
	}
	if sess.HybridPending {
		return nil, dispute.ErrHybridPending
	}
	if s.engine == nil || !s.engine.Available() {
		return nil, dispute.ErrLockBusy
	}
	if s.usageGate != nil {
		ok, err := s.usageGate.CanUse(ctx, userID, usage.FeatureHybridResolution)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dispute.ErrUsageLimited
		}
	}
	pickA := sess.ResolutionByID(sess.Mismatch.OriginalCreatorPick)
	pickB := sess.ResolutionByID(sess.Mismatch.OriginalPartnerPick)
	if pickA == nil || pickB == nil {
		return nil, dispute.ErrUnknownResolution
	}

	sess.HybridPending = true
	s.persist(sess)
	s.fanout(sess)
	go s.generateHybrid(sess.SessionID, sess.CoupleID, userID, *pickA, *pickB)
	return sess.StateFor(userID), nil
}

func (s *Service) generateHybrid(sessionID uuid.UUID, coupleID string, requestedBy uuid.UUID, pickA, pickB dispute.Resolution) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PipelineTimeout)
	defer cancel()

	unlock := s.lockCouple(coupleID)
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID {
		unlock()
		return
	}
	data := caseDataFor(sess)
	analysis := sess.Analysis
	unlock()

	result, err := s.engine.HybridResolution(ctx, data, analysis, pickA, pickB, "")

	unlock = s.lockCouple(coupleID)
	defer unlock()
	sess = s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID {
		return
	}
	sess.HybridPending = false
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("hybrid generation failed")
		s.persist(sess)
		s.fanout(sess)
		return
	}
	hybrid := result.Resolution
	hybrid.ID = dispute.HybridResolutionID
	hybrid.Hybrid = true
	hybrid.BridgingMessage = result.BridgingMessage
	sess.HybridResolution = &hybrid
	if s.usageGate != nil {
		if err := s.usageGate.Record(ctx, requestedBy, usage.FeatureHybridResolution); err != nil {
			s.logger.Warn().Err(err).Msg("hybrid usage record failed")
		}
	}
	s.persist(sess)
	s.fanout(sess)
}

// finalizeResolution records the agreed resolution, builds the verdict, and
// advances to VERDICT.
func (s *Service) finalizeResolution(ctx context.Context, sess *dispute.Session, res *dispute.Resolution) error {
	final := *res
	sess.FinalResolution = &final
	s.buildVerdict(sess, dispute.VerdictStatusResolved, &final, "")
	if err := s.advance(sess, dispute.PhaseVerdict); err != nil {
		return err
	}
	s.push(ctx, sess.CreatorID, "Verdict ready", "Your dispute verdict is ready for review")
	s.push(ctx, sess.PartnerID, "Verdict ready", "Your dispute verdict is ready for review")
	return nil
}

// buildVerdict appends a verdict version. Re-runs after an addendum carry
// the addendum author's attribution.
func (s *Service) buildVerdict(sess *dispute.Session, status dispute.VerdictStatus, res *dispute.Resolution, summary string) {
	v := dispute.Verdict{
		VerdictID:  uuid.New(),
		Status:     status,
		Resolution: res,
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
	}
	if len(sess.VerdictHistory) > 0 && len(sess.AddendumHistory) > 0 {
		author := sess.AddendumHistory[len(sess.AddendumHistory)-1].AuthorID
		v.AddendumBy = &author
	}
	sess.Verdict = &v
	sess.VerdictHistory = append(sess.VerdictHistory, v)
}

// sessionForPick resolves the caller's session taking the distributed lock
// before the couple lock, the same order the timeout path uses, so a pick
// and a timer fire on one session can never wait on each other.
func (s *Service) sessionForPick(ctx context.Context, userID uuid.UUID) (*dispute.Session, func(), func(), error) {
	target := s.store.GetByUser(userID)
	if target == nil {
		return nil, nil, nil, dispute.ErrNoActiveSession
	}
	release, err := s.acquireLock(ctx, target.SessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	if sess.SessionID != target.SessionID {
		// The session was replaced while we waited for the lock.
		unlock()
		release()
		return nil, nil, nil, dispute.ErrNoActiveSession
	}
	return sess, unlock, release, nil
}

// acquireLock takes the cross-instance lock when configured, bounded so
// contention surfaces as ErrLockBusy instead of blocking the caller.
func (s *Service) acquireLock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lctx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	release, err := s.locker.Acquire(lctx, sessionID)
	if err != nil {
		return nil, dispute.ErrLockBusy
	}
	return release, nil
}

func otherRole(role dispute.Role) dispute.Role {
	if role == dispute.RoleCreator {
		return dispute.RolePartner
	}
	return dispute.RoleCreator
}

func partnerPickOf(sess *dispute.Session, userID uuid.UUID) string {
	other := otherRole(sess.RoleOf(userID))
	if m := sess.Mismatch; m != nil {
		if other == dispute.RoleCreator && m.CreatorPick != "" {
			return m.CreatorPick
		}
		if other == dispute.RolePartner && m.PartnerPick != "" {
			return m.PartnerPick
		}
		if other == dispute.RoleCreator {
			return m.OriginalCreatorPick
		}
		return m.OriginalPartnerPick
	}
	return sess.PickOf(other)
}

package dispute

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/accord-app/accord/internal/domain/dispute"
	"github.com/accord-app/accord/internal/domain/engine"
	"github.com/accord-app/accord/internal/domain/usage"
)

// runPipeline is the ANALYZING background job: gate on usage, run the two
// engine calls, then advance to PRIMING. Any failure short-circuits to an
// error verdict so the parties always reach a reviewable outcome.
func (s *Service) runPipeline(sessionID uuid.UUID, coupleID string, addendumText string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PipelineTimeout)
	defer cancel()

	unlock := s.lockCouple(coupleID)
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID || sess.Phase != dispute.PhaseAnalyzing {
		unlock()
		return
	}
	data := caseDataFor(sess)
	opts := engine.Options{AddendumText: addendumText}
	if len(sess.VerdictHistory) > 0 {
		if raw, err := json.Marshal(sess.VerdictHistory); err == nil {
			opts.PriorVerdicts = raw
		}
	}
	creatorID := sess.CreatorID
	unlock()

	if s.engine == nil || !s.engine.Available() {
		s.failPipeline(sessionID, coupleID, "The reasoning engine is currently unavailable")
		return
	}
	if s.usageGate != nil {
		ok, err := s.usageGate.CanUse(ctx, creatorID, usage.FeatureVerdictPipeline)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("usage check failed")
			s.failPipeline(sessionID, coupleID, "Usage could not be verified")
			return
		}
		if !ok {
			s.failPipeline(sessionID, coupleID, "Usage limit reached for dispute analysis")
			return
		}
	}

	phase1, err := s.engine.Phase1(ctx, data, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("phase1 failed")
		s.failPipeline(sessionID, coupleID, "Analysis failed; the verdict could not be produced")
		return
	}
	phase2, err := s.engine.Phase2(ctx, phase1, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("phase2 failed")
		s.failPipeline(sessionID, coupleID, "Analysis failed; the verdict could not be produced")
		return
	}

	unlock = s.lockCouple(coupleID)
	defer unlock()
	sess = s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID || sess.Phase != dispute.PhaseAnalyzing {
		// The session was cancelled or settled while we were computing.
		return
	}
	sess.Analysis = phase1.Analysis
	sess.Resolutions = append([]dispute.Resolution(nil), phase1.Resolutions...)
	sess.AssessedIntensity = phase1.AssessedIntensity
	sess.HistoricalContext = phase1.HistoricalContext
	sess.PrimingContent = phase2.PrimingContent
	sess.JointMenu = phase2.JointMenu
	s.clearSettlement(sess)

	if err := s.advance(sess, dispute.PhasePriming); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("priming transition rejected")
		return
	}
	if s.usageGate != nil {
		if err := s.usageGate.Record(ctx, creatorID, usage.FeatureVerdictPipeline); err != nil {
			s.logger.Warn().Err(err).Msg("usage record failed")
		}
	}
	s.persist(sess)
	s.fanout(sess)
	s.push(ctx, sess.CreatorID, "Analysis ready", "Your dispute analysis is ready")
	s.push(ctx, sess.PartnerID, "Analysis ready", "Your dispute analysis is ready")
	s.logger.Info().Str("session_id", sessionID.String()).Int("resolutions", len(sess.Resolutions)).Msg("pipeline complete")
}

// failPipeline records an error verdict and jumps straight to VERDICT so
// the failure is visible and acceptable rather than a silent stall.
func (s *Service) failPipeline(sessionID uuid.UUID, coupleID, summary string) {
	unlock := s.lockCouple(coupleID)
	defer unlock()
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID || sess.Phase != dispute.PhaseAnalyzing {
		return
	}
	s.buildVerdict(sess, dispute.VerdictStatusError, nil, summary)
	s.clearSettlement(sess)
	if err := s.advance(sess, dispute.PhaseVerdict); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("error verdict transition rejected")
		return
	}
	s.persist(sess)
	s.fanout(sess)
}

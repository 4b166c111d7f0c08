package dispute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-app/accord/internal/domain/dispute"
	"github.com/accord-app/accord/internal/domain/engine"
	"github.com/accord-app/accord/internal/domain/notify"
	"github.com/accord-app/accord/internal/domain/usage"
)

// StateNotifier delivers projected state to every live connection a user
// holds, on any instance.
type StateNotifier interface {
	NotifyState(userID uuid.UUID, state *dispute.UserState)
}

// Coordinator decides which instance owns a session's timers. The single
// binding rule: only the owner performs timeout-fired side effects.
type Coordinator interface {
	Assign(ctx context.Context, sessionID uuid.UUID) error
	Release(ctx context.Context, sessionID uuid.UUID) error
	IsOwner(sessionID uuid.UUID) bool
}

// Config holds all orchestrator tunables.
type Config struct {
	PendingTimeout    time.Duration
	EvidenceTimeout   time.Duration
	AnalyzingTimeout  time.Duration
	PrimingTimeout    time.Duration
	JointTimeout      time.Duration
	ResolutionTimeout time.Duration
	VerdictTimeout    time.Duration
	SettlementTimeout time.Duration
	CleanupDelay      time.Duration
	PipelineTimeout   time.Duration
	LockTimeout       time.Duration
	LockRetryDelay    time.Duration
	AddendumLimit     int
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.PendingTimeout, 24*time.Hour)
	def(&c.EvidenceTimeout, 24*time.Hour)
	def(&c.AnalyzingTimeout, 10*time.Minute)
	def(&c.PrimingTimeout, 24*time.Hour)
	def(&c.JointTimeout, 24*time.Hour)
	def(&c.ResolutionTimeout, 24*time.Hour)
	def(&c.VerdictTimeout, 48*time.Hour)
	def(&c.SettlementTimeout, time.Hour)
	def(&c.CleanupDelay, 5*time.Minute)
	def(&c.PipelineTimeout, 3*time.Minute)
	def(&c.LockTimeout, 5*time.Second)
	def(&c.LockRetryDelay, 5*time.Second)
	if c.AddendumLimit <= 0 {
		c.AddendumLimit = 2
	}
	return c
}

// Service is the session orchestrator: the sole entry point other code may
// call. Every action returns the full projected state for the caller.
type Service struct {
	store       *Store
	sched       *Scheduler
	engine      engine.Engine
	usageGate   usage.Gate
	locker      dispute.Locker
	checkpoints dispute.CheckpointRepository
	cases       dispute.CaseHistoryRepository
	notifier    StateNotifier
	pusher      notify.Pusher
	coord       Coordinator
	cfg         Config
	logger      zerolog.Logger

	mu      sync.Mutex
	couples map[string]*sync.Mutex
}

// NewService creates the orchestrator. checkpoints, cases, notifier,
// pusher, coord and locker may be nil; a nil locker falls back to
// in-process locking only.
func NewService(
	store *Store,
	sched *Scheduler,
	eng engine.Engine,
	usageGate usage.Gate,
	locker dispute.Locker,
	checkpoints dispute.CheckpointRepository,
	cases dispute.CaseHistoryRepository,
	notifier StateNotifier,
	pusher notify.Pusher,
	coord Coordinator,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:       store,
		sched:       sched,
		engine:      eng,
		usageGate:   usageGate,
		locker:      locker,
		checkpoints: checkpoints,
		cases:       cases,
		notifier:    notifier,
		pusher:      pusher,
		coord:       coord,
		cfg:         cfg.withDefaults(),
		couples:     make(map[string]*sync.Mutex),
		logger:      logger.With().Str("service", "dispute").Logger(),
	}
}

// Serve opens a new dispute session in PENDING, awaiting partner accept.
func (s *Service) Serve(ctx context.Context, creatorID, partnerID uuid.UUID) (*dispute.UserState, error) {
	if creatorID == uuid.Nil || partnerID == uuid.Nil {
		return nil, fmt.Errorf("creator_id and partner_id are required")
	}
	if creatorID == partnerID {
		return nil, fmt.Errorf("cannot open a dispute against yourself")
	}
	if s.store.GetByUser(creatorID) != nil || s.store.GetByUser(partnerID) != nil {
		return nil, dispute.ErrSessionExists
	}

	sess := dispute.NewSession(creatorID, partnerID, time.Now().UTC())
	if err := s.store.Put(sess); err != nil {
		return nil, err
	}
	if s.coord != nil {
		if err := s.coord.Assign(ctx, sess.SessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("ownership assign failed")
		}
	}
	s.armPhaseTimer(sess)
	s.persist(sess)
	s.push(ctx, partnerID, "Dispute opened", "Your partner opened a dispute session")
	s.fanout(sess)

	s.logger.Info().Str("session_id", sess.SessionID.String()).Str("couple_id", sess.CoupleID).Msg("session served")
	return sess.StateFor(creatorID), nil
}

// Accept moves PENDING to EVIDENCE; only the served partner may accept.
func (s *Service) Accept(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhasePending {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.RoleOf(userID) != dispute.RolePartner {
		return nil, fmt.Errorf("only the served partner can accept")
	}
	if err := s.advance(sess, dispute.PhaseEvidence); err != nil {
		return nil, err
	}
	s.persist(sess)
	s.fanout(sess)
	return sess.StateFor(userID), nil
}

// Cancel abandons the session from any non-terminal phase.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.teardown(ctx, sess, "cancelled")
	s.push(ctx, sess.OtherParty(userID), "Dispute cancelled", "Your partner cancelled the dispute session")
	return idleState(), nil
}

// Dismiss declines a PENDING invitation; only the served partner may.
func (s *Service) Dismiss(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhasePending {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.RoleOf(userID) != dispute.RolePartner {
		return nil, fmt.Errorf("only the served partner can dismiss")
	}
	s.teardown(ctx, sess, "dismissed")
	s.push(ctx, sess.OtherParty(userID), "Dispute dismissed", "Your partner declined the dispute session")
	return idleState(), nil
}

// AcceptVerdict records one party's acceptance; both acceptances close the
// session.
func (s *Service) AcceptVerdict(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhaseVerdict {
		return nil, dispute.ErrPhaseMismatch
	}
	sess.Party(userID).VerdictAccepted = true
	if sess.BothVerdictAccepted() {
		s.closeSession(ctx, sess, false)
	} else {
		s.persist(sess)
		s.fanout(sess)
	}
	return sess.StateFor(userID), nil
}

// SubmitAddendum re-runs the pipeline from VERDICT, bounded by the
// addendum limit.
func (s *Service) SubmitAddendum(ctx context.Context, userID uuid.UUID, text string) (*dispute.UserState, error) {
	if text == "" {
		return nil, fmt.Errorf("addendum text is required")
	}
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != dispute.PhaseVerdict {
		return nil, dispute.ErrPhaseMismatch
	}
	if sess.AddendumCount >= s.cfg.AddendumLimit {
		return nil, dispute.ErrAddendumLimit
	}

	now := time.Now().UTC()
	sess.AddendumHistory = append(sess.AddendumHistory, dispute.Addendum{
		AuthorID:  userID,
		Text:      text,
		CreatedAt: now,
	})
	sess.ResetForAddendum()
	sess.AddendumCount++
	if err := s.advance(sess, dispute.PhaseAnalyzing); err != nil {
		return nil, err
	}
	s.persist(sess)
	s.fanout(sess)
	go s.runPipeline(sess.SessionID, sess.CoupleID, text)
	return sess.StateFor(userID), nil
}

// MarkPrimingComplete sets the caller's priming gate; both gates advance
// to JOINT_READY.
func (s *Service) MarkPrimingComplete(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	return s.gate(userID, dispute.PhasePriming, dispute.PhaseJointReady,
		func(p *dispute.PartyState) { p.PrimingReady = true },
		func(sess *dispute.Session) bool { return sess.BothPrimingReady() },
	)
}

// MarkJointReady sets the caller's joint gate; both gates advance to
// RESOLUTION.
func (s *Service) MarkJointReady(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	return s.gate(userID, dispute.PhaseJointReady, dispute.PhaseResolution,
		func(p *dispute.PartyState) { p.JointReady = true },
		func(sess *dispute.Session) bool { return sess.BothJointReady() },
	)
}

// StateForUser returns the projection without mutating anything.
func (s *Service) StateForUser(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	sess := s.store.GetByUser(userID)
	if sess == nil {
		return idleState(), nil
	}
	unlock := s.lockCouple(sess.CoupleID)
	defer unlock()
	return sess.StateFor(userID), nil
}

// RecoverFromDatabase hydrates the caller's session from checkpoint rows
// when this instance has no in-memory copy, rearming the phase timer.
func (s *Service) RecoverFromDatabase(ctx context.Context, userID uuid.UUID) (*dispute.UserState, error) {
	if sess := s.store.GetByUser(userID); sess != nil {
		unlock := s.lockCouple(sess.CoupleID)
		defer unlock()
		return sess.StateFor(userID), nil
	}
	if s.checkpoints == nil {
		return idleState(), nil
	}
	sessions, err := s.checkpoints.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover sessions: %w", err)
	}
	for _, sess := range sessions {
		if !sess.IsParticipant(userID) {
			continue
		}
		s.store.Hydrate(sess)
		s.armPhaseTimer(sess)
		s.logger.Info().Str("session_id", sess.SessionID.String()).Msg("session recovered from checkpoint")
		return sess.StateFor(userID), nil
	}
	return idleState(), nil
}

// RecoverAll hydrates every checkpointed session at boot.
func (s *Service) RecoverAll(ctx context.Context) (int, error) {
	if s.checkpoints == nil {
		return 0, nil
	}
	sessions, err := s.checkpoints.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, sess := range sessions {
		if s.store.GetByCouple(sess.CoupleID) != nil {
			continue
		}
		s.store.Hydrate(sess)
		s.armPhaseTimer(sess)
		recovered++
	}
	if recovered > 0 {
		s.logger.Info().Int("count", recovered).Msg("sessions recovered from checkpoints")
	}
	return recovered, nil
}

// NotifyPartnerOffline pushes a hint to the partner when a user's last
// live connection drops mid-session.
func (s *Service) NotifyPartnerOffline(ctx context.Context, userID uuid.UUID) {
	sess := s.store.GetByUser(userID)
	if sess == nil || sess.Phase == dispute.PhaseClosed {
		return
	}
	s.push(ctx, sess.OtherParty(userID), "Partner offline", "Your partner disconnected from the dispute session")
}

// gate applies one per-user flag and advances when both parties cleared it.
func (s *Service) gate(
	userID uuid.UUID,
	requiredPhase, nextPhase dispute.Phase,
	set func(*dispute.PartyState),
	both func(*dispute.Session) bool,
) (*dispute.UserState, error) {
	sess, unlock, err := s.sessionFor(userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess.Phase != requiredPhase {
		return nil, dispute.ErrPhaseMismatch
	}
	set(sess.Party(userID))
	if both(sess) {
		if err := s.advance(sess, nextPhase); err != nil {
			return nil, err
		}
	}
	s.persist(sess)
	s.fanout(sess)
	return sess.StateFor(userID), nil
}

// sessionFor resolves the caller's session and takes the in-process couple
// lock. The returned unlock must always run.
func (s *Service) sessionFor(userID uuid.UUID) (*dispute.Session, func(), error) {
	sess := s.store.GetByUser(userID)
	if sess == nil {
		return nil, nil, dispute.ErrNoActiveSession
	}
	unlock := s.lockCouple(sess.CoupleID)
	// Re-check after taking the lock; a terminal action may have raced us.
	if current := s.store.GetByCouple(sess.CoupleID); current == nil || current.SessionID != sess.SessionID {
		unlock()
		return nil, nil, dispute.ErrNoActiveSession
	}
	if !sess.IsParticipant(userID) {
		unlock()
		return nil, nil, dispute.ErrNotParticipant
	}
	return sess, unlock, nil
}

func (s *Service) lockCouple(coupleID string) func() {
	s.mu.Lock()
	m, ok := s.couples[coupleID]
	if !ok {
		m = &sync.Mutex{}
		s.couples[coupleID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// advance validates and performs one phase transition: cancels the old
// phase timer, mutates phase, arms the next timer.
func (s *Service) advance(sess *dispute.Session, target dispute.Phase) error {
	if !sess.CanTransitionTo(target) {
		return dispute.ErrPhaseMismatch
	}
	if kind, _ := s.phaseTimer(sess.Phase); kind != "" {
		s.sched.Cancel(sess.SessionID, kind)
	}
	sess.Phase = target
	sess.PhaseStartedAt = time.Now().UTC()
	s.armPhaseTimer(sess)
	return nil
}

func (s *Service) phaseTimer(phase dispute.Phase) (TimerKind, time.Duration) {
	switch phase {
	case dispute.PhasePending:
		return TimerPending, s.cfg.PendingTimeout
	case dispute.PhaseEvidence:
		return TimerEvidence, s.cfg.EvidenceTimeout
	case dispute.PhaseAnalyzing:
		return TimerAnalyzing, s.cfg.AnalyzingTimeout
	case dispute.PhasePriming:
		return TimerPriming, s.cfg.PrimingTimeout
	case dispute.PhaseJointReady:
		return TimerJoint, s.cfg.JointTimeout
	case dispute.PhaseResolution:
		return TimerResolution, s.cfg.ResolutionTimeout
	case dispute.PhaseVerdict:
		return TimerVerdict, s.cfg.VerdictTimeout
	}
	return "", 0
}

func (s *Service) armPhaseTimer(sess *dispute.Session) {
	kind, d := s.phaseTimer(sess.Phase)
	if kind == "" {
		return
	}
	sessionID, coupleID := sess.SessionID, sess.CoupleID
	s.sched.Schedule(sessionID, kind, d, func() {
		s.onPhaseTimeout(sessionID, coupleID, kind)
	})
}

// onPhaseTimeout is the timeout-fired transition. Only the owning instance
// proceeds, and the distributed lock closes the duplicate-timer window for
// replicated deployments. Lock order is distributed lock first, couple lock
// second; every path that takes both uses that order.
func (s *Service) onPhaseTimeout(sessionID uuid.UUID, coupleID string, kind TimerKind) {
	if s.coord != nil && !s.coord.IsOwner(sessionID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	release, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		// The scheduler already forgot this timer, so losing the lock here
		// would strand the session in its phase. Re-arm and try again.
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("timeout fire deferred; lock busy")
		s.sched.Schedule(sessionID, kind, s.cfg.LockRetryDelay, func() {
			s.onPhaseTimeout(sessionID, coupleID, kind)
		})
		return
	}
	defer release()

	unlock := s.lockCouple(coupleID)
	defer unlock()
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID {
		return
	}
	currentKind, _ := s.phaseTimer(sess.Phase)
	if currentKind != kind {
		// Stale timer; the session already left this phase.
		return
	}

	if kind == TimerVerdict {
		s.logger.Info().Str("session_id", sessionID.String()).Msg("verdict timeout; auto-accepting")
		s.closeSession(ctx, sess, true)
		return
	}
	s.logger.Info().Str("session_id", sessionID.String()).Str("phase", string(sess.Phase)).Msg("phase timeout; tossing session")
	s.teardown(ctx, sess, "timeout")
}

// closeSession performs VERDICT→CLOSED: case history, background insight
// extraction, delayed cleanup.
func (s *Service) closeSession(ctx context.Context, sess *dispute.Session, autoAccept bool) {
	now := time.Now().UTC()
	if autoAccept {
		sess.Creator.VerdictAccepted = true
		sess.Partner.VerdictAccepted = true
		if sess.Verdict != nil {
			sess.Verdict.Status = dispute.VerdictStatusAutoAccepted
			if n := len(sess.VerdictHistory); n > 0 {
				sess.VerdictHistory[n-1].Status = dispute.VerdictStatusAutoAccepted
			}
		}
	}
	if err := s.advance(sess, dispute.PhaseClosed); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.SessionID.String()).Msg("close transition rejected")
		return
	}
	sess.ResolvedAt = &now

	if s.cases != nil {
		record := &dispute.CaseRecord{
			CaseID:    uuid.New(),
			SessionID: sess.SessionID,
			CoupleID:  sess.CoupleID,
			CreatorID: sess.CreatorID,
			PartnerID: sess.PartnerID,
			Verdicts:  append([]dispute.Verdict(nil), sess.VerdictHistory...),
			Addendums: append([]dispute.Addendum(nil), sess.AddendumHistory...),
			ClosedAt:  now,
		}
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.cases.InsertCase(cctx, record); err != nil {
				s.logger.Warn().Err(err).Str("case_id", record.CaseID.String()).Msg("case history persist failed")
			}
		}()
	}
	if s.engine != nil {
		data := caseDataFor(sess)
		caseID := sess.SessionID.String()
		go s.engine.ExtractInsights(context.Background(), data, caseID)
	}

	s.persist(sess)
	s.fanout(sess)

	sessionID, coupleID := sess.SessionID, sess.CoupleID
	s.sched.Schedule(sessionID, TimerCleanup, s.cfg.CleanupDelay, func() {
		s.cleanupClosed(sessionID, coupleID)
	})
}

func (s *Service) cleanupClosed(sessionID uuid.UUID, coupleID string) {
	unlock := s.lockCouple(coupleID)
	defer unlock()
	sess := s.store.GetByCouple(coupleID)
	if sess == nil || sess.SessionID != sessionID || sess.Phase != dispute.PhaseClosed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.removeSession(ctx, sess)
}

// teardown destroys the session and notifies both parties of idle state.
// Timers are cancelled first, before any asynchronous I/O.
func (s *Service) teardown(ctx context.Context, sess *dispute.Session, reason string) {
	s.removeSession(ctx, sess)
	if s.notifier != nil {
		s.notifier.NotifyState(sess.CreatorID, idleState())
		s.notifier.NotifyState(sess.PartnerID, idleState())
	}
	s.logger.Info().Str("session_id", sess.SessionID.String()).Str("reason", reason).Msg("session removed")
}

func (s *Service) removeSession(ctx context.Context, sess *dispute.Session) {
	s.sched.CancelAll(sess.SessionID)
	s.store.Delete(sess.CoupleID)
	if s.checkpoints != nil {
		sessionID := sess.SessionID
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.checkpoints.Delete(dctx, sessionID); err != nil {
				s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("checkpoint delete failed")
			}
		}()
	}
	if s.coord != nil {
		if err := s.coord.Release(ctx, sess.SessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("ownership release failed")
		}
	}
}

// persist checkpoints the session best-effort and publishes the store
// change event. Failures are logged, never surfaced.
func (s *Service) persist(sess *dispute.Session) {
	s.store.Touch(sess)
	if s.checkpoints == nil {
		return
	}
	snapshot := sess.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.checkpoints.Upsert(ctx, snapshot); err != nil {
			s.logger.Warn().Err(err).Str("session_id", snapshot.SessionID.String()).Msg("checkpoint failed")
		}
	}()
}

func (s *Service) fanout(sess *dispute.Session) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyState(sess.CreatorID, sess.StateFor(sess.CreatorID))
	s.notifier.NotifyState(sess.PartnerID, sess.StateFor(sess.PartnerID))
}

func (s *Service) push(ctx context.Context, userID uuid.UUID, title, body string) {
	if s.pusher == nil {
		return
	}
	s.pusher.Push(ctx, userID, title, body)
}

func idleState() *dispute.UserState {
	return &dispute.UserState{Phase: dispute.PhaseIdle, ViewPhase: dispute.ViewIdle}
}

func caseDataFor(sess *dispute.Session) engine.CaseData {
	return engine.CaseData{
		SessionID:       sess.SessionID.String(),
		CreatorEvidence: sess.Creator.Evidence,
		CreatorFeelings: sess.Creator.Feelings,
		CreatorNeeds:    sess.Creator.Needs,
		PartnerEvidence: sess.Partner.Evidence,
		PartnerFeelings: sess.Partner.Feelings,
		PartnerNeeds:    sess.Partner.Needs,
	}
}

package dispute

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase describes the coarse position of a session in its lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhasePending    Phase = "PENDING"
	PhaseEvidence   Phase = "EVIDENCE"
	PhaseAnalyzing  Phase = "ANALYZING"
	PhasePriming    Phase = "PRIMING"
	PhaseJointReady Phase = "JOINT_READY"
	PhaseResolution Phase = "RESOLUTION"
	PhaseVerdict    Phase = "VERDICT"
	PhaseClosed     Phase = "CLOSED"
)

// Role identifies which of the two slots a participant occupies.
type Role string

const (
	RoleCreator Role = "CREATOR"
	RolePartner Role = "PARTNER"
	RoleNone    Role = ""
)

// VerdictStatus describes how a verdict came to be.
type VerdictStatus string

const (
	VerdictStatusResolved     VerdictStatus = "RESOLVED"
	VerdictStatusError        VerdictStatus = "ERROR"
	VerdictStatusAutoAccepted VerdictStatus = "AUTO_ACCEPTED"
)

// HybridResolutionID is the fixed id under which an AI-generated compromise
// is stored; either party may pick it like any other resolution.
const HybridResolutionID = "hybrid"

var (
	ErrNotParticipant    = errors.New("user is not a session participant")
	ErrNoActiveSession   = errors.New("no active session for user")
	ErrSessionExists     = errors.New("couple already has an active session")
	ErrPhaseMismatch     = errors.New("action not valid in current phase")
	ErrAlreadySubmitted  = errors.New("evidence already submitted")
	ErrUnknownResolution = errors.New("unknown resolution id")
	ErrMismatchLocked    = errors.New("partner has committed; must pick the same resolution")
	ErrNoPartnerPick     = errors.New("partner has not picked a resolution")
	ErrSettlementSelf    = errors.New("cannot act on your own settlement request")
	ErrNoSettlement      = errors.New("no settlement request pending")
	ErrLockBusy          = errors.New("session is busy; try again")
	ErrUsageLimited      = errors.New("usage limit reached")
	ErrAddendumLimit     = errors.New("addendum limit reached")
	ErrHybridPending     = errors.New("hybrid resolution already being generated")
	ErrNoMismatch        = errors.New("no active resolution mismatch")
	ErrFinalized         = errors.New("resolution already finalized")
)

// PartyState holds one participant's gating flags and private input.
type PartyState struct {
	EvidenceSubmitted bool       `json:"evidenceSubmitted"`
	Evidence          string     `json:"evidence,omitempty"`
	Feelings          string     `json:"feelings,omitempty"`
	Needs             string     `json:"needs,omitempty"`
	PrimingReady      bool       `json:"primingReady"`
	JointReady        bool       `json:"jointReady"`
	VerdictAccepted   bool       `json:"verdictAccepted"`
	SubmittedAt       *time.Time `json:"submittedAt,omitempty"`
}

// Resolution is one candidate outcome produced by the reasoning engine,
// passed through opaquely except for its id.
type Resolution struct {
	ID              string          `json:"id"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	Detail          json.RawMessage `json:"detail,omitempty"`
	Hybrid          bool            `json:"hybrid,omitempty"`
	BridgingMessage string          `json:"bridgingMessage,omitempty"`
}

// MismatchState tracks the renegotiation entered when the two parties pick
// divergent resolutions.
type MismatchState struct {
	OriginalCreatorPick string `json:"originalCreatorPick"`
	OriginalPartnerPick string `json:"originalPartnerPick"`
	CreatorPick         string `json:"creatorPick,omitempty"`
	PartnerPick         string `json:"partnerPick,omitempty"`
	LockedResolutionID  string `json:"lockedResolutionId,omitempty"`
	LockedBy            Role   `json:"lockedBy,omitempty"`
}

// Verdict is one produced outcome version.
type Verdict struct {
	VerdictID  uuid.UUID       `json:"verdictId"`
	Status     VerdictStatus   `json:"status"`
	Resolution *Resolution     `json:"resolution,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	AddendumBy *uuid.UUID      `json:"addendumBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Addendum is one bounded re-run request recorded after a verdict existed.
type Addendum struct {
	AuthorID  uuid.UUID `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the unit of state, one per active couple dispute.
// Timer handles live in the scheduler registry, never on the entity.
type Session struct {
	SessionID uuid.UUID `json:"sessionId"`
	CoupleID  string    `json:"coupleId"`
	CreatorID uuid.UUID `json:"creatorId"`
	PartnerID uuid.UUID `json:"partnerId"`
	Phase     Phase     `json:"phase"`

	Creator PartyState `json:"creator"`
	Partner PartyState `json:"partner"`

	Analysis          string          `json:"analysis,omitempty"`
	Resolutions       []Resolution    `json:"resolutions,omitempty"`
	AssessedIntensity string          `json:"assessedIntensity,omitempty"`
	PrimingContent    json.RawMessage `json:"primingContent,omitempty"`
	JointMenu         json.RawMessage `json:"jointMenu,omitempty"`
	HistoricalContext string          `json:"historicalContext,omitempty"`

	CreatorPick      string         `json:"creatorPick,omitempty"`
	PartnerPick      string         `json:"partnerPick,omitempty"`
	FinalResolution  *Resolution    `json:"finalResolution,omitempty"`
	HybridResolution *Resolution    `json:"hybridResolution,omitempty"`
	HybridPending    bool           `json:"hybridPending"`
	Mismatch         *MismatchState `json:"mismatch,omitempty"`

	Verdict         *Verdict   `json:"verdict,omitempty"`
	VerdictHistory  []Verdict  `json:"verdictHistory,omitempty"`
	AddendumHistory []Addendum `json:"addendumHistory,omitempty"`
	AddendumCount   int        `json:"addendumCount"`

	SettlementRequestedBy *uuid.UUID `json:"settlementRequestedBy,omitempty"`
	SettlementRequestedAt *time.Time `json:"settlementRequestedAt,omitempty"`

	CreatedAt      time.Time  `json:"createdAt"`
	PhaseStartedAt time.Time  `json:"phaseStartedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// CaseRecord is the immutable history persisted when a session closes.
type CaseRecord struct {
	CaseID    uuid.UUID  `json:"caseId"`
	SessionID uuid.UUID  `json:"sessionId"`
	CoupleID  string     `json:"coupleId"`
	CreatorID uuid.UUID  `json:"creatorId"`
	PartnerID uuid.UUID  `json:"partnerId"`
	Verdicts  []Verdict  `json:"verdicts"`
	Addendums []Addendum `json:"addendums,omitempty"`
	ClosedAt  time.Time  `json:"closedAt"`
}

// UserState is the projection returned to the acting user by every action.
type UserState struct {
	Phase     Phase     `json:"phase"`
	ViewPhase ViewPhase `json:"myViewPhase"`
	Session   *Session  `json:"session,omitempty"`
}

// CoupleIDFor builds the stable composite id for two linked users.
// Order-independent: both orderings yield the same id.
func CoupleIDFor(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + "::" + y
}

// NewSession creates a session in PENDING awaiting partner acceptance.
func NewSession(creatorID, partnerID uuid.UUID, now time.Time) *Session {
	return &Session{
		SessionID:      uuid.New(),
		CoupleID:       CoupleIDFor(creatorID, partnerID),
		CreatorID:      creatorID,
		PartnerID:      partnerID,
		Phase:          PhasePending,
		CreatedAt:      now,
		PhaseStartedAt: now,
	}
}

// RoleOf returns which slot userID occupies, or RoleNone.
func (s *Session) RoleOf(userID uuid.UUID) Role {
	switch userID {
	case s.CreatorID:
		return RoleCreator
	case s.PartnerID:
		return RolePartner
	}
	return RoleNone
}

// IsParticipant reports whether userID is one of the two parties.
func (s *Session) IsParticipant(userID uuid.UUID) bool {
	return s.RoleOf(userID) != RoleNone
}

// OtherParty returns the opposite participant's user id.
func (s *Session) OtherParty(userID uuid.UUID) uuid.UUID {
	if userID == s.CreatorID {
		return s.PartnerID
	}
	return s.CreatorID
}

// Party returns the mutable per-user state for userID, or nil.
func (s *Session) Party(userID uuid.UUID) *PartyState {
	switch s.RoleOf(userID) {
	case RoleCreator:
		return &s.Creator
	case RolePartner:
		return &s.Partner
	}
	return nil
}

func (s *Session) BothEvidenceSubmitted() bool {
	return s.Creator.EvidenceSubmitted && s.Partner.EvidenceSubmitted
}

func (s *Session) BothPrimingReady() bool {
	return s.Creator.PrimingReady && s.Partner.PrimingReady
}

func (s *Session) BothJointReady() bool {
	return s.Creator.JointReady && s.Partner.JointReady
}

func (s *Session) BothVerdictAccepted() bool {
	return s.Creator.VerdictAccepted && s.Partner.VerdictAccepted
}

// ResolutionByID resolves an id against the engine-produced candidates or
// the stored hybrid compromise.
func (s *Session) ResolutionByID(id string) *Resolution {
	if s.HybridResolution != nil && s.HybridResolution.ID == id {
		r := *s.HybridResolution
		return &r
	}
	for i := range s.Resolutions {
		if s.Resolutions[i].ID == id {
			r := s.Resolutions[i]
			return &r
		}
	}
	return nil
}

// PickOf returns the recorded first-round pick for a role.
func (s *Session) PickOf(role Role) string {
	if role == RoleCreator {
		return s.CreatorPick
	}
	return s.PartnerPick
}

// SetPick records a first-round pick for a role.
func (s *Session) SetPick(role Role, resolutionID string) {
	if role == RoleCreator {
		s.CreatorPick = resolutionID
		return
	}
	s.PartnerPick = resolutionID
}

// MismatchActive reports whether renegotiation is (or must become) active:
// explicit mismatch state exists, or both picks are set, unequal, and no
// final resolution was reached.
func (s *Session) MismatchActive() bool {
	if s.FinalResolution != nil {
		return false
	}
	if s.Mismatch != nil {
		return true
	}
	return s.CreatorPick != "" && s.PartnerPick != "" && s.CreatorPick != s.PartnerPick
}

// phaseTransitions is the directed graph of legal forward edges, plus the
// single backward edge VERDICT→ANALYZING taken on addendum submission.
var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhasePending},
	PhasePending:    {PhaseEvidence},
	PhaseEvidence:   {PhaseAnalyzing},
	PhaseAnalyzing:  {PhasePriming, PhaseVerdict},
	PhasePriming:    {PhaseJointReady},
	PhaseJointReady: {PhaseResolution},
	PhaseResolution: {PhaseVerdict},
	PhaseVerdict:    {PhaseClosed, PhaseAnalyzing},
	PhaseClosed:     {},
}

// CanTransitionTo checks one edge of the phase graph.
func (s *Session) CanTransitionTo(target Phase) bool {
	for _, p := range phaseTransitions[s.Phase] {
		if p == target {
			return true
		}
	}
	return false
}

// ResetForAddendum clears pipeline, resolution and mismatch state ahead of
// a re-run. Verdict history and addendum history survive.
func (s *Session) ResetForAddendum() {
	s.Analysis = ""
	s.Resolutions = nil
	s.AssessedIntensity = ""
	s.PrimingContent = nil
	s.JointMenu = nil
	s.HistoricalContext = ""
	s.CreatorPick = ""
	s.PartnerPick = ""
	s.FinalResolution = nil
	s.HybridResolution = nil
	s.HybridPending = false
	s.Mismatch = nil
	s.Verdict = nil
	s.Creator.PrimingReady = false
	s.Partner.PrimingReady = false
	s.Creator.JointReady = false
	s.Partner.JointReady = false
	s.Creator.VerdictAccepted = false
	s.Partner.VerdictAccepted = false
}

// Clone deep-copies the session so projections never alias live state.
func (s *Session) Clone() *Session {
	out := *s
	out.Resolutions = append([]Resolution(nil), s.Resolutions...)
	out.PrimingContent = append(json.RawMessage(nil), s.PrimingContent...)
	out.JointMenu = append(json.RawMessage(nil), s.JointMenu...)
	out.VerdictHistory = append([]Verdict(nil), s.VerdictHistory...)
	out.AddendumHistory = append([]Addendum(nil), s.AddendumHistory...)
	if s.FinalResolution != nil {
		r := *s.FinalResolution
		out.FinalResolution = &r
	}
	if s.HybridResolution != nil {
		r := *s.HybridResolution
		out.HybridResolution = &r
	}
	if s.Mismatch != nil {
		m := *s.Mismatch
		out.Mismatch = &m
	}
	if s.Verdict != nil {
		v := *s.Verdict
		out.Verdict = &v
	}
	if s.SettlementRequestedBy != nil {
		id := *s.SettlementRequestedBy
		out.SettlementRequestedBy = &id
	}
	if s.SettlementRequestedAt != nil {
		t := *s.SettlementRequestedAt
		out.SettlementRequestedAt = &t
	}
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

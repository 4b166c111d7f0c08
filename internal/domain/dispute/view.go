package dispute

import "github.com/google/uuid"

// ViewPhase is the per-user projection of Phase: the same coarse position
// split into "my turn" and "waiting on partner" variants.
type ViewPhase string

const (
	ViewIdle               ViewPhase = "IDLE"
	ViewPendingAccept      ViewPhase = "PENDING_ACCEPT"
	ViewPendingWaiting     ViewPhase = "PENDING_WAITING"
	ViewEvidenceSubmit     ViewPhase = "EVIDENCE_SUBMIT"
	ViewEvidenceWaiting    ViewPhase = "EVIDENCE_WAITING"
	ViewAnalyzing          ViewPhase = "ANALYZING"
	ViewPrimingReview      ViewPhase = "PRIMING_REVIEW"
	ViewPrimingWaiting     ViewPhase = "PRIMING_WAITING"
	ViewJointReview        ViewPhase = "JOINT_REVIEW"
	ViewJointWaiting       ViewPhase = "JOINT_WAITING"
	ViewResolutionPick     ViewPhase = "RESOLUTION_PICK"
	ViewResolutionWaiting  ViewPhase = "RESOLUTION_WAITING"
	ViewResolutionMismatch ViewPhase = "RESOLUTION_MISMATCH"
	ViewVerdictReview      ViewPhase = "VERDICT_REVIEW"
	ViewVerdictWaiting     ViewPhase = "VERDICT_WAITING"
	ViewClosed             ViewPhase = "CLOSED"
)

// ViewPhaseFor derives the caller's view from the phase plus which of the
// per-user gates the caller has already cleared.
func (s *Session) ViewPhaseFor(userID uuid.UUID) ViewPhase {
	party := s.Party(userID)
	if party == nil {
		return ViewIdle
	}
	switch s.Phase {
	case PhasePending:
		if s.RoleOf(userID) == RolePartner {
			return ViewPendingAccept
		}
		return ViewPendingWaiting
	case PhaseEvidence:
		if party.EvidenceSubmitted {
			return ViewEvidenceWaiting
		}
		return ViewEvidenceSubmit
	case PhaseAnalyzing:
		return ViewAnalyzing
	case PhasePriming:
		if party.PrimingReady {
			return ViewPrimingWaiting
		}
		return ViewPrimingReview
	case PhaseJointReady:
		if party.JointReady {
			return ViewJointWaiting
		}
		return ViewJointReview
	case PhaseResolution:
		if s.MismatchActive() {
			return ViewResolutionMismatch
		}
		role := s.RoleOf(userID)
		if s.PickOf(role) != "" {
			return ViewResolutionWaiting
		}
		return ViewResolutionPick
	case PhaseVerdict:
		if party.VerdictAccepted {
			return ViewVerdictWaiting
		}
		return ViewVerdictReview
	case PhaseClosed:
		return ViewClosed
	}
	return ViewIdle
}

// StateFor builds the full projected state returned to one user.
func (s *Session) StateFor(userID uuid.UUID) *UserState {
	return &UserState{
		Phase:     s.Phase,
		ViewPhase: s.ViewPhaseFor(userID),
		Session:   s.Clone(),
	}
}

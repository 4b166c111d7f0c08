package dispute

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupleIDForIsOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, CoupleIDFor(a, b), CoupleIDFor(b, a))
	assert.NotEqual(t, CoupleIDFor(a, b), CoupleIDFor(a, uuid.New()))
}

func TestNewSessionStartsPending(t *testing.T) {
	creator, partner := uuid.New(), uuid.New()
	now := time.Now().UTC()
	sess := NewSession(creator, partner, now)

	assert.Equal(t, PhasePending, sess.Phase)
	assert.Equal(t, CoupleIDFor(creator, partner), sess.CoupleID)
	assert.Equal(t, now, sess.CreatedAt)
	assert.Equal(t, RoleCreator, sess.RoleOf(creator))
	assert.Equal(t, RolePartner, sess.RoleOf(partner))
	assert.Equal(t, RoleNone, sess.RoleOf(uuid.New()))
	assert.Equal(t, partner, sess.OtherParty(creator))
	assert.Equal(t, creator, sess.OtherParty(partner))
}

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from    Phase
		to      Phase
		allowed bool
	}{
		{PhasePending, PhaseEvidence, true},
		{PhasePending, PhaseVerdict, false},
		{PhaseEvidence, PhaseAnalyzing, true},
		{PhaseEvidence, PhasePriming, false},
		{PhaseAnalyzing, PhasePriming, true},
		{PhaseAnalyzing, PhaseVerdict, true},
		{PhasePriming, PhaseJointReady, true},
		{PhaseJointReady, PhaseResolution, true},
		{PhaseResolution, PhaseVerdict, true},
		{PhaseVerdict, PhaseClosed, true},
		{PhaseVerdict, PhaseAnalyzing, true},
		{PhaseClosed, PhasePending, false},
		{PhaseResolution, PhaseEvidence, false},
	}
	for _, tc := range cases {
		sess := &Session{Phase: tc.from}
		assert.Equal(t, tc.allowed, sess.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMismatchActive(t *testing.T) {
	sess := &Session{}
	assert.False(t, sess.MismatchActive())

	sess.CreatorPick, sess.PartnerPick = "r1", "r1"
	assert.False(t, sess.MismatchActive())

	sess.PartnerPick = "r2"
	assert.True(t, sess.MismatchActive())

	sess.FinalResolution = &Resolution{ID: "r1"}
	assert.False(t, sess.MismatchActive())

	sess = &Session{Mismatch: &MismatchState{OriginalCreatorPick: "r1", OriginalPartnerPick: "r2"}}
	assert.True(t, sess.MismatchActive())
}

func TestResolutionByID(t *testing.T) {
	sess := &Session{
		Resolutions:      []Resolution{{ID: "r1", Title: "A"}, {ID: "r2", Title: "B"}},
		HybridResolution: &Resolution{ID: HybridResolutionID, Hybrid: true},
	}

	res := sess.ResolutionByID("r2")
	require.NotNil(t, res)
	assert.Equal(t, "B", res.Title)

	hybrid := sess.ResolutionByID(HybridResolutionID)
	require.NotNil(t, hybrid)
	assert.True(t, hybrid.Hybrid)

	assert.Nil(t, sess.ResolutionByID("missing"))

	// Returned copies never alias session state.
	res.Title = "mutated"
	assert.Equal(t, "B", sess.Resolutions[1].Title)
}

func TestResetForAddendumKeepsHistory(t *testing.T) {
	author := uuid.New()
	sess := &Session{
		Phase:           PhaseVerdict,
		Analysis:        "analysis",
		Resolutions:     []Resolution{{ID: "r1"}},
		CreatorPick:     "r1",
		PartnerPick:     "r1",
		FinalResolution: &Resolution{ID: "r1"},
		Mismatch:        &MismatchState{},
		Verdict:         &Verdict{VerdictID: uuid.New()},
		VerdictHistory:  []Verdict{{VerdictID: uuid.New()}},
		AddendumHistory: []Addendum{{AuthorID: author, Text: "more"}},
		AddendumCount:   1,
		Creator:         PartyState{EvidenceSubmitted: true, PrimingReady: true, JointReady: true, VerdictAccepted: true},
		Partner:         PartyState{EvidenceSubmitted: true, PrimingReady: true, JointReady: true, VerdictAccepted: true},
	}

	sess.ResetForAddendum()

	assert.Empty(t, sess.Analysis)
	assert.Nil(t, sess.Resolutions)
	assert.Empty(t, sess.CreatorPick)
	assert.Nil(t, sess.FinalResolution)
	assert.Nil(t, sess.Mismatch)
	assert.Nil(t, sess.Verdict)
	assert.False(t, sess.Creator.PrimingReady)
	assert.False(t, sess.Partner.VerdictAccepted)

	// Evidence and the historical record survive the reset.
	assert.True(t, sess.Creator.EvidenceSubmitted)
	assert.Len(t, sess.VerdictHistory, 1)
	assert.Len(t, sess.AddendumHistory, 1)
	assert.Equal(t, 1, sess.AddendumCount)
}

func TestCloneDoesNotAlias(t *testing.T) {
	requester := uuid.New()
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	sess.Resolutions = []Resolution{{ID: "r1", Title: "A"}}
	sess.Mismatch = &MismatchState{OriginalCreatorPick: "r1"}
	sess.Verdict = &Verdict{VerdictID: uuid.New(), Status: VerdictStatusResolved}
	sess.SettlementRequestedBy = &requester

	clone := sess.Clone()
	clone.Resolutions[0].Title = "mutated"
	clone.Mismatch.OriginalCreatorPick = "r2"
	clone.Verdict.Status = VerdictStatusError
	*clone.SettlementRequestedBy = uuid.New()

	assert.Equal(t, "A", sess.Resolutions[0].Title)
	assert.Equal(t, "r1", sess.Mismatch.OriginalCreatorPick)
	assert.Equal(t, VerdictStatusResolved, sess.Verdict.Status)
	assert.Equal(t, requester, *sess.SettlementRequestedBy)
}

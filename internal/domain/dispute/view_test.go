package dispute

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewPhaseForPending(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	assert.Equal(t, ViewPendingWaiting, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewPendingAccept, sess.ViewPhaseFor(sess.PartnerID))
	assert.Equal(t, ViewIdle, sess.ViewPhaseFor(uuid.New()))
}

func TestViewPhaseForEvidence(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	sess.Phase = PhaseEvidence
	sess.Creator.EvidenceSubmitted = true

	assert.Equal(t, ViewEvidenceWaiting, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewEvidenceSubmit, sess.ViewPhaseFor(sess.PartnerID))
}

func TestViewPhaseForGates(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	sess.Phase = PhasePriming
	sess.Partner.PrimingReady = true
	assert.Equal(t, ViewPrimingReview, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewPrimingWaiting, sess.ViewPhaseFor(sess.PartnerID))

	sess.Phase = PhaseJointReady
	sess.Creator.JointReady = true
	assert.Equal(t, ViewJointWaiting, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewJointReview, sess.ViewPhaseFor(sess.PartnerID))
}

func TestViewPhaseForResolution(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	sess.Phase = PhaseResolution

	assert.Equal(t, ViewResolutionPick, sess.ViewPhaseFor(sess.CreatorID))

	sess.CreatorPick = "r1"
	assert.Equal(t, ViewResolutionWaiting, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewResolutionPick, sess.ViewPhaseFor(sess.PartnerID))

	sess.PartnerPick = "r2"
	assert.Equal(t, ViewResolutionMismatch, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewResolutionMismatch, sess.ViewPhaseFor(sess.PartnerID))
}

func TestViewPhaseForVerdictAndClosed(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())

	sess.Phase = PhaseVerdict
	sess.Creator.VerdictAccepted = true
	assert.Equal(t, ViewVerdictWaiting, sess.ViewPhaseFor(sess.CreatorID))
	assert.Equal(t, ViewVerdictReview, sess.ViewPhaseFor(sess.PartnerID))

	sess.Phase = PhaseClosed
	assert.Equal(t, ViewClosed, sess.ViewPhaseFor(sess.CreatorID))
}

func TestStateForClones(t *testing.T) {
	sess := NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	sess.Phase = PhaseEvidence

	st := sess.StateFor(sess.CreatorID)
	require.NotNil(t, st.Session)
	assert.Equal(t, PhaseEvidence, st.Phase)
	assert.Equal(t, ViewEvidenceSubmit, st.ViewPhase)

	st.Session.Phase = PhaseClosed
	assert.Equal(t, PhaseEvidence, sess.Phase)
}

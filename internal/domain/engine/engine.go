package engine

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_engine.go -package=mocks . Engine

import (
	"context"
	"encoding/json"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// CaseData is the private input of both parties handed to the engine.
type CaseData struct {
	SessionID       string `json:"sessionId"`
	CreatorEvidence string `json:"creatorEvidence"`
	CreatorFeelings string `json:"creatorFeelings"`
	CreatorNeeds    string `json:"creatorNeeds"`
	PartnerEvidence string `json:"partnerEvidence"`
	PartnerFeelings string `json:"partnerFeelings"`
	PartnerNeeds    string `json:"partnerNeeds"`
}

// Options carries pass-through tuning for a pipeline run.
type Options struct {
	Locale        string          `json:"locale,omitempty"`
	AddendumText  string          `json:"addendumText,omitempty"`
	PriorVerdicts json.RawMessage `json:"priorVerdicts,omitempty"`
}

// Phase1Result is the first engine call's output. All fields are opaque to
// the orchestrator beyond the resolution ids.
type Phase1Result struct {
	Analysis          string               `json:"analysis"`
	Resolutions       []dispute.Resolution `json:"resolutions"`
	AssessedIntensity string               `json:"assessedIntensity"`
	HistoricalContext string               `json:"historicalContext,omitempty"`
}

// Phase2Result is the second engine call's output.
type Phase2Result struct {
	PrimingContent json.RawMessage `json:"primingContent"`
	JointMenu      json.RawMessage `json:"jointMenu"`
}

// HybridResult is an AI-generated compromise between two divergent picks.
type HybridResult struct {
	Resolution      dispute.Resolution `json:"hybridResolution"`
	BridgingMessage string             `json:"bridgingMessage"`
}

// Engine is the external reasoning engine, consumed as a black box.
type Engine interface {
	Available() bool
	Phase1(ctx context.Context, data CaseData, opts Options) (*Phase1Result, error)
	Phase2(ctx context.Context, phase1 *Phase1Result, opts Options) (*Phase2Result, error)
	HybridResolution(ctx context.Context, data CaseData, analysis string, pickA, pickB dispute.Resolution, contextText string) (*HybridResult, error)
	// ExtractInsights is fire-and-forget; no return value is consumed.
	ExtractInsights(ctx context.Context, data CaseData, caseID string)
}

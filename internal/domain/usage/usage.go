package usage

import (
	"context"

	"github.com/google/uuid"
)

// FeatureClass buckets metered features for entitlement checks.
type FeatureClass string

const (
	FeatureVerdictPipeline  FeatureClass = "VERDICT_PIPELINE"
	FeatureHybridResolution FeatureClass = "HYBRID_RESOLUTION"
)

// Gate answers entitlement questions and records consumption.
type Gate interface {
	CanUse(ctx context.Context, userID uuid.UUID, feature FeatureClass) (bool, error)
	Record(ctx context.Context, userID uuid.UUID, feature FeatureClass) error
}

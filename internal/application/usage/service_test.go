package usage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accord-app/accord/internal/domain/usage"
)

func TestDefaultPolicyAllowsThenDenies(t *testing.T) {
	svc, err := NewService(nil, zerolog.Nop())
	require.NoError(t, err)
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := svc.CanUse(ctx, userID, usage.FeatureVerdictPipeline)
		require.NoError(t, err)
		assert.True(t, ok, "use %d should be allowed", i)
		require.NoError(t, svc.Record(ctx, userID, usage.FeatureVerdictPipeline))
	}

	ok, err := svc.CanUse(ctx, userID, usage.FeatureVerdictPipeline)
	require.NoError(t, err)
	assert.False(t, ok)

	// Counters are per user and per feature.
	ok, err = svc.CanUse(ctx, uuid.New(), usage.FeatureVerdictPipeline)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.CanUse(ctx, userID, usage.FeatureHybridResolution)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCustomPolicy(t *testing.T) {
	svc, err := NewService(map[usage.FeatureClass]string{
		usage.FeatureHybridResolution: "count_total < 1",
	}, zerolog.Nop())
	require.NoError(t, err)
	userID := uuid.New()
	ctx := context.Background()

	ok, err := svc.CanUse(ctx, userID, usage.FeatureHybridResolution)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Record(ctx, userID, usage.FeatureHybridResolution))
	ok, err = svc.CanUse(ctx, userID, usage.FeatureHybridResolution)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidPolicyRejectedAtStartup(t *testing.T) {
	_, err := NewService(map[usage.FeatureClass]string{
		usage.FeatureVerdictPipeline: "count_today <",
	}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNonBooleanPolicyFailsEvaluation(t *testing.T) {
	svc, err := NewService(map[usage.FeatureClass]string{
		usage.FeatureVerdictPipeline: "count_today + 1",
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.CanUse(context.Background(), uuid.New(), usage.FeatureVerdictPipeline)
	assert.Error(t, err)
}

func TestUnknownFeatureAllowed(t *testing.T) {
	svc, err := NewService(nil, zerolog.Nop())
	require.NoError(t, err)

	ok, err := svc.CanUse(context.Background(), uuid.New(), usage.FeatureClass("SOMETHING_ELSE"))
	require.NoError(t, err)
	assert.True(t, ok)
}

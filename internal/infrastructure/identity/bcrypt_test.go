package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainIdentity "github.com/accord-app/accord/internal/domain/identity"
)

func TestBcryptVerifier(t *testing.T) {
	userID := uuid.New()
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	verifier := NewBcryptVerifier(func(ctx context.Context, id uuid.UUID) (string, error) {
		if id == userID {
			return hash, nil
		}
		return "", nil
	})
	ctx := context.Background()

	got, err := verifier.Verify(ctx, userID.String()+".s3cret")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = verifier.Verify(ctx, userID.String()+".wrong")
	assert.ErrorIs(t, err, domainIdentity.ErrUnverified)
	_, err = verifier.Verify(ctx, uuid.NewString()+".s3cret")
	assert.ErrorIs(t, err, domainIdentity.ErrUnverified)
	_, err = verifier.Verify(ctx, "no-dot-token")
	assert.ErrorIs(t, err, domainIdentity.ErrUnverified)
	_, err = verifier.Verify(ctx, "not-a-uuid.s3cret")
	assert.ErrorIs(t, err, domainIdentity.ErrUnverified)
}

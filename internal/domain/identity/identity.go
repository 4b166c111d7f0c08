package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnverified = errors.New("identity could not be verified")

// Verifier resolves a connection credential to a verified user id.
// Verification itself is an external concern; this is the seam.
type Verifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

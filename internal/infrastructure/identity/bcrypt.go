package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/accord-app/accord/internal/domain/identity"
)

// HashLookup resolves the stored bcrypt hash for a user.
type HashLookup func(ctx context.Context, userID uuid.UUID) (string, error)

// BcryptVerifier verifies bearer tokens of the form "<user-id>.<secret>"
// against stored bcrypt hashes.
type BcryptVerifier struct {
	lookup HashLookup
}

func NewBcryptVerifier(lookup HashLookup) *BcryptVerifier {
	return &BcryptVerifier{lookup: lookup}
}

func (v *BcryptVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	userPart, secret, ok := strings.Cut(token, ".")
	if !ok {
		return uuid.Nil, identity.ErrUnverified
	}
	userID, err := uuid.Parse(userPart)
	if err != nil {
		return uuid.Nil, identity.ErrUnverified
	}
	hash, err := v.lookup(ctx, userID)
	if err != nil || hash == "" {
		return uuid.Nil, identity.ErrUnverified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return uuid.Nil, identity.ErrUnverified
	}
	return userID, nil
}

// HashSecret produces the stored form of a token secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Package crypto implements the credential store: slow salted one-way
// hashing for passwords and backup codes, plus high-entropy opaque token
// generation for session secrets.
package crypto

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/nebulium/authcore/logging/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is used when the configured cost is out of bcrypt range.
	DefaultCost = 12

	opaqueTokenBytes = 32
)

// Hasher hashes and verifies secrets with a configurable cost factor.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. Costs outside bcrypt's range fall back to
// DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash applies a slow, salted one-way hash to the secret.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		logger.Errorf(ctx, "crypto.Hash error: %v", err)
		return "", err
	}
	return string(digest), nil
}

// Verify compares the digest with the provided secret. Comparison does not
// leak timing about where a mismatch occurred, and a malformed digest
// yields false rather than an error.
func (h *Hasher) Verify(secret, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	return err == nil
}

// OpaqueToken returns a 256-bit hex-encoded random secret.
func OpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MustOpaqueToken is OpaqueToken that panics on a broken entropy source.
// Failure to read the system CSPRNG is not a recoverable condition for an
// auth service.
func MustOpaqueToken() string {
	token, err := OpaqueToken()
	if err != nil {
		panic(err)
	}
	return token
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "elkayan/internal/errors"
)

// DefaultBcryptCost is used when the hasher is built with a zero cost.
const DefaultBcryptCost = 10

// Hasher derives and verifies stored credentials. The plaintext is keyed
// through HMAC-SHA256 with a process-wide secret and the hex digest is then
// hashed with bcrypt. Both steps always run; there is no unkeyed fallback.
type Hasher struct {
	key  []byte
	cost int
}

// NewHasher creates a hasher. An empty key is accepted so the process can
// start, but every Derive and Verify call then fails with ErrConfiguration.
func NewHasher(key string, cost int) *Hasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &Hasher{key: []byte(key), cost: cost}
}

// Configured reports whether a secret key is present.
func (h *Hasher) Configured() bool {
	return h != nil && len(h.key) > 0
}

// Derive returns the storable hash of plaintext.
func (h *Hasher) Derive(plaintext string) (string, error) {
	digest, err := h.keyed(plaintext)
	if err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword(digest, h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches stored. A corrupt or foreign
// stored hash yields false with a nil error; only a missing key is an error.
func (h *Hasher) Verify(plaintext, stored string) (bool, error) {
	digest, err := h.keyed(plaintext)
	if err != nil {
		return false, err
	}
	if stored == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), digest) == nil, nil
}

// keyed returns the lowercase hex HMAC-SHA256 of plaintext. The 64 byte hex
// form stays below bcrypt's 72 byte input limit.
func (h *Hasher) keyed(plaintext string) ([]byte, error) {
	if !h.Configured() {
		return nil, fmt.Errorf("%w: password hmac key is not set", apperrors.ErrConfiguration)
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(plaintext))
	sum := mac.Sum(nil)

	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out, nil
}

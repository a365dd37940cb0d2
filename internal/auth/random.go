package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomString returns a URL-safe random string of exactly n characters.
func RandomString(n int) (string, error) {
	buf := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

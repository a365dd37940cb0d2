package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenContextKey is the echo context key under which the parsed
// session cookie token is stored.
const SessionTokenContextKey = "session_token"

// SessionClaims are the claims carried by the session cookie. The JWT ID is
// the server-side session identifier.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// CookieCodec signs and verifies session cookies. The cookie only proves the
// session id was issued by this server; all session state lives in the store.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCookieCodec creates a codec with the given HMAC secret.
func NewCookieCodec(secret string, ttl time.Duration) *CookieCodec {
	return &CookieCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SigningKey returns the HMAC key, for the echo-jwt middleware.
func (c *CookieCodec) SigningKey() []byte {
	return c.secret
}

// NewClaims returns an empty claims value to parse into.
func (c *CookieCodec) NewClaims() jwt.Claims {
	return &SessionClaims{}
}

// Encode returns the signed cookie value for sessionID.
func (c *CookieCodec) Encode(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("empty session id")
	}
	now := c.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode validates a cookie value and returns the session id it carries.
func (c *CookieCodec) Decode(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", err
	}
	return SessionIDFromToken(token)
}

// SessionIDFromToken extracts the session id from a parsed, valid token.
func SessionIDFromToken(token *jwt.Token) (string, error) {
	if token == nil || !token.Valid {
		return "", errors.New("invalid session token")
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ID == "" {
		return "", errors.New("session id not found")
	}
	return claims.ID, nil
}

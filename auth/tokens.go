package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SessionClaims are the JWT claims stored in the session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid"`
	Nickname string `json:"nickname,omitempty"`
}

// SessionTokens signs and validates session cookies
type SessionTokens struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	now             func() time.Time
}

// NewSessionTokens creates a HS256 token signer, expiration is in hours
func NewSessionTokens(signingKey []byte, tokenExpiration int, issuer string) *SessionTokens {
	if tokenExpiration <= 0 {
		tokenExpiration = 24
	}
	return &SessionTokens{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		now:             time.Now,
	}
}

// Expiration returns how long issued tokens live
func (ts *SessionTokens) Expiration() time.Duration {
	return time.Duration(ts.tokenExpiration) * time.Hour
}

// Generate creates a session token for user
func (ts *SessionTokens) Generate(user *User) (string, error) {
	if user.IsAnonymous() {
		return "", errors.New("can not issue a session for an anonymous user", errors.CategoryBadInput)
	}

	now := ts.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.Expiration())),
		},
		UID:      user.ID.String(),
		Nickname: user.Nickname,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate parses a session token and returns its claims
func (ts *SessionTokens) Validate(tokenString string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, opts...)

	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "invalid session token").
			WithCode(errors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrAuthentication
	}

	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = time.Hour

var (
	// ErrTokenExpired means the signature checked out but exp has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed covers bad signatures and unparsable tokens.
	ErrTokenMalformed = errors.New("token malformed")
)

// Claims is the token payload.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens. It holds no session state.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// TokenOption customizes Tokens.
type TokenOption func(*Tokens)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) {
		t.now = now
	}
}

// NewTokens builds a token service signing with secret.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	t := &Tokens{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue returns a signed token for userID expiring TokenTTL from now.
func (t *Tokens) Issue(userID int64) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(t.now().Add(TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature, then the expiry, and returns the user id.
func (t *Tokens) Decode(tokenString string) (int64, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrTokenMalformed
	}
	return claims.UserID, nil
}

package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrEmptySecret      = errors.New("signing secret is empty")
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrWrongKind        = errors.New("token kind mismatch")
)

// Codec signs and verifies HS256 tokens with a single symmetric secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue signs claims as a token of the given kind that expires ttl from now.
// The returned time is the expiry as encoded in the token.
func (c *Codec) Issue(claims Claims, kind Kind, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	claims.Kind = kind
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature first and the expiry second. A token whose
// expiry equals the current time is already expired.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformed, claims.Kind)
	}
	return &claims, nil
}

func (c *Codec) VerifyKind(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongKind, kind, claims.Kind)
	}
	return claims, nil
}

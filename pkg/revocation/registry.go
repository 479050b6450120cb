// Package revocation tracks access tokens that were explicitly logged out
// before their natural expiry.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrUnavailable wraps failures of the backing store. Callers must treat it
// as "unknown", never as "not revoked".
var ErrUnavailable = errors.New("revocation store unavailable")

// Registry records revoked tokens. Revoke is idempotent.
type Registry interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Package auth validates the shared application secret that gates all
// proxied work. The check runs before any rate-limit state is read or
// written, so unauthenticated probing never consumes quota.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/mbenaiss/InsightRun/internal/domain"
)

// AppKeyHeader is the client-facing header carrying the shared secret.
const AppKeyHeader = "X-App-Key"

// Verifier checks a presented app key against the configured secret.
// When a bcrypt hash is configured it takes precedence over the
// plaintext secret, keeping the secret itself out of the environment.
type Verifier struct {
	key  string
	hash string
}

func NewVerifier(key, hash string) *Verifier {
	return &Verifier{key: key, hash: hash}
}

// Verify returns domain.ErrInvalidAppKey when presented does not match.
// Plaintext comparison is constant-time.
func (v *Verifier) Verify(presented string) error {
	if presented == "" {
		return domain.ErrInvalidAppKey
	}

	if v.hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(v.hash), []byte(presented)); err != nil {
			return domain.ErrInvalidAppKey
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(v.key), []byte(presented)) != 1 {
		return domain.ErrInvalidAppKey
	}
	return nil
}

// HashKey produces a bcrypt hash suitable for APP_KEY_HASH.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
